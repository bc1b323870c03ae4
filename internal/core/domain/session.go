package domain

import (
	"context"
	"time"
)

// TokenKind distinguishes the two signed credentials a client may hold.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// IssuedToken is a signed token together with the instant it stops verifying.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Session is the outcome of resolving a request's credentials.
//
// Renewed is non-nil when the access token was missing or expired and a new
// one was minted from the refresh token; the transport layer must hand it
// back to the client.
type Session struct {
	Account *Account
	Renewed *IssuedToken
}

type principalKey struct{}

// WithPrincipal stores the authenticated account in ctx.
func WithPrincipal(ctx context.Context, a *Account) context.Context {
	return context.WithValue(ctx, principalKey{}, a)
}

// PrincipalFromContext returns the account stored by WithPrincipal, if any.
func PrincipalFromContext(ctx context.Context) (*Account, bool) {
	a, ok := ctx.Value(principalKey{}).(*Account)
	return a, ok && a != nil
}
