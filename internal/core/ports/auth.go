package ports

import (
	"context"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

// PasswordHasher produces and checks self-describing password hashes.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	// Verify returns false, nil on a mismatch. It errors only when encoded
	// is not a well-formed hash or the computation could not run.
	Verify(ctx context.Context, encoded, plaintext string) (bool, error)
}

// TokenService signs and verifies access and refresh tokens.
type TokenService interface {
	IssueAccessToken(accountID string) (domain.IssuedToken, error)
	IssueRefreshToken(accountID string) (domain.IssuedToken, error)
	// Verify returns the account id bound to token. It fails with
	// domain.ErrTokenExpired or domain.ErrTokenInvalid.
	Verify(token string, kind domain.TokenKind) (string, error)
	// ReissueAccessFromRefresh mints a new access token for the account named
	// by a valid refresh token. The refresh token itself is left as is.
	ReissueAccessFromRefresh(refreshToken string) (domain.IssuedToken, string, error)
}

// SessionResolver turns the credentials presented on a request into an
// authenticated session.
type SessionResolver interface {
	Resolve(ctx context.Context, accessToken, refreshToken string) (*domain.Session, error)
}
