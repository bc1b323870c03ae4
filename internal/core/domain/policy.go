package domain

// Policy decides whether principal may act on the account addressed by
// target (a username, empty for collection routes). A nil return admits the
// request; any error rejects it.
type Policy func(principal *Account, target string) error

// RequireRole admits principals whose role is one of roles.
func RequireRole(roles ...Role) Policy {
	allowed := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(principal *Account, _ string) error {
		if principal == nil {
			return ErrAuthenticationRequired
		}
		if _, ok := allowed[principal.Role]; !ok {
			return ErrForbidden
		}
		return nil
	}
}

// OwnerOrAdmin admits admins and principals acting on their own account.
func OwnerOrAdmin() Policy {
	return func(principal *Account, target string) error {
		if principal == nil {
			return ErrAuthenticationRequired
		}
		if principal.IsAdmin() || principal.Username == target {
			return nil
		}
		return ErrForbidden
	}
}

// NotSelf rejects principals addressing their own account.
func NotSelf() Policy {
	return func(principal *Account, target string) error {
		if principal == nil {
			return ErrAuthenticationRequired
		}
		if principal.Username == target {
			return ErrCannotDeleteSelf
		}
		return nil
	}
}

// Evaluate applies policies in order and returns the first rejection.
func Evaluate(principal *Account, target string, policies ...Policy) error {
	for _, p := range policies {
		if err := p(principal, target); err != nil {
			return err
		}
	}
	return nil
}
