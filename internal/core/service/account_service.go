package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/rs/zerolog"

	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
)

// AccountService implements registration, login and account management.
type AccountService struct {
	repo   ports.AccountRepository
	hasher ports.PasswordHasher
	tokens ports.TokenService
	log    zerolog.Logger
}

func NewAccountService(repo ports.AccountRepository, hasher ports.PasswordHasher, tokens ports.TokenService, log zerolog.Logger) *AccountService {
	return &AccountService{repo: repo, hasher: hasher, tokens: tokens, log: log}
}

// Register validates and normalises the input, hashes the password and
// stores a new account with the user role. Uniqueness is left to the store,
// so duplicates are detected only after the input is well formed.
func (s *AccountService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Account, error) {
	username := domain.NormalizeUsername(in.Username)
	email := domain.NormalizeEmail(in.Email)

	if username == "" {
		return nil, domain.NewValidationError("username is required")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	return s.create(ctx, username, email, in.Password, domain.RoleUser)
}

// EnsureAdmin creates an admin account unless the username is already taken.
// It is used to bootstrap the first administrator at startup.
func (s *AccountService) EnsureAdmin(ctx context.Context, in ports.RegisterInput) error {
	username := domain.NormalizeUsername(in.Username)

	existing, err := s.repo.FindByUsername(ctx, username)
	switch {
	case err == nil:
		if !existing.IsAdmin() {
			s.log.Warn().Str("username", username).Msg("bootstrap admin exists without admin role, leaving it unchanged")
		}
		return nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return fmt.Errorf("ensure admin: %w", err)
	}

	email := domain.NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	if err := validatePassword(in.Password); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}

	if _, err := s.create(ctx, username, email, in.Password, domain.RoleAdmin); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	return nil
}

func (s *AccountService) create(ctx context.Context, username, email, password string, role domain.Role) (*domain.Account, error) {
	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.repo.Create(ctx, &domain.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateAccount) {
			return nil, err
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.log.Info().Str("username", created.Username).Str("role", string(created.Role)).Msg("account registered")
	return created.Public(), nil
}

// Login checks the credentials and issues an access/refresh token pair.
// Unknown usernames and wrong passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	username = domain.NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	ok, err := s.hasher.Verify(ctx, account.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("login: verify password: %w", err)
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	access, err := s.tokens.IssueAccessToken(account.ID)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(account.ID)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	s.log.Info().Str("username", account.Username).Msg("login succeeded")
	return &ports.LoginResult{Account: account.Public(), Access: access, Refresh: refresh}, nil
}

func (s *AccountService) ListUsernames(ctx context.Context) ([]string, error) {
	names, err := s.repo.ListUsernames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list usernames: %w", err)
	}
	return names, nil
}

func (s *AccountService) Get(ctx context.Context, username string) (*domain.Account, error) {
	account, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return account.Public(), nil
}

// Update applies a self-service or admin update. A role change requested by
// a non-admin is validated and then silently dropped.
func (s *AccountService) Update(ctx context.Context, principal *domain.Account, username string, in ports.UpdateAccountInput) (*domain.Account, error) {
	if err := domain.OwnerOrAdmin()(principal, username); err != nil {
		return nil, err
	}
	if in.Email == nil && in.Password == nil && in.Role == nil {
		return nil, domain.NewValidationError("at least one of email, password or role is required")
	}

	var changes ports.AccountChanges

	if in.Email != nil {
		email := domain.NormalizeEmail(*in.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		changes.Email = &email
	}

	var role domain.Role
	if in.Role != nil {
		role = domain.Role(*in.Role)
		if !role.Valid() {
			return nil, domain.NewValidationError("role must be one of: user admin")
		}
	}

	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(ctx, *in.Password)
		if err != nil {
			return nil, fmt.Errorf("update account: hash password: %w", err)
		}
		changes.PasswordHash = &hash
	}

	if in.Role != nil {
		if principal.IsAdmin() {
			changes.Role = &role
		} else {
			s.log.Debug().Str("username", username).Str("caller", principal.Username).Msg("ignoring role change from non-admin")
		}
	}

	var (
		updated *domain.Account
		err     error
	)
	if changes.Empty() {
		updated, err = s.repo.FindByUsername(ctx, username)
	} else {
		updated, err = s.repo.Update(ctx, username, changes)
	}
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrDuplicateAccount) {
			return nil, err
		}
		return nil, fmt.Errorf("update account: %w", err)
	}

	s.log.Info().Str("username", username).Str("caller", principal.Username).Msg("account updated")
	return updated.Public(), nil
}

// Delete removes an account. Only admins may delete, and never themselves.
func (s *AccountService) Delete(ctx context.Context, principal *domain.Account, username string) error {
	if err := domain.Evaluate(principal, username, domain.RequireRole(domain.RoleAdmin), domain.NotSelf()); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, username); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("delete account: %w", err)
	}

	s.log.Info().Str("username", username).Str("caller", principal.Username).Msg("account deleted")
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return domain.NewValidationError("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.NewValidationError("email must be a valid email")
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return domain.NewValidationError("password is required")
	}
	if len(password) < domain.MinPasswordLength {
		return domain.NewValidationError(fmt.Sprintf("password must be at least %d characters long", domain.MinPasswordLength))
	}
	return nil
}
