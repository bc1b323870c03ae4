package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

// TokenConfig holds the secrets and lifetimes of both token kinds.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// tokenClaims is the signed payload. It binds nothing but the account id
// (sub) and the token kind, so every request re-reads role and username from
// the store.
type tokenClaims struct {
	Kind domain.TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 JWTs.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token service: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("token service: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token service: token lifetimes must be positive")
	}
	return &TokenService{cfg: cfg, now: time.Now}, nil
}

func (s *TokenService) IssueAccessToken(accountID string) (domain.IssuedToken, error) {
	return s.issue(domain.TokenAccess, accountID)
}

func (s *TokenService) IssueRefreshToken(accountID string) (domain.IssuedToken, error) {
	return s.issue(domain.TokenRefresh, accountID)
}

// Verify checks signature, algorithm, expiry and kind, in that order, and
// returns the account id the token was issued for.
func (s *TokenService) Verify(token string, kind domain.TokenKind) (string, error) {
	secret, _, err := s.params(kind)
	if err != nil {
		return "", err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	claims := &tokenClaims{}
	tkn, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %w", domain.ErrTokenInvalid, err)
	}
	if !tkn.Valid || claims.Kind != kind || claims.Subject == "" {
		return "", domain.ErrTokenInvalid
	}
	return claims.Subject, nil
}

func (s *TokenService) ReissueAccessFromRefresh(refreshToken string) (domain.IssuedToken, string, error) {
	accountID, err := s.Verify(refreshToken, domain.TokenRefresh)
	if err != nil {
		return domain.IssuedToken{}, "", fmt.Errorf("%w: %w", domain.ErrInvalidRefreshToken, err)
	}
	access, err := s.IssueAccessToken(accountID)
	if err != nil {
		return domain.IssuedToken{}, "", err
	}
	return access, accountID, nil
}

func (s *TokenService) issue(kind domain.TokenKind, accountID string) (domain.IssuedToken, error) {
	if accountID == "" {
		return domain.IssuedToken{}, errors.New("issue token: empty account id")
	}
	secret, ttl, err := s.params(kind)
	if err != nil {
		return domain.IssuedToken{}, err
	}

	now := s.now()
	claims := tokenClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return domain.IssuedToken{Value: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (s *TokenService) params(kind domain.TokenKind) (string, time.Duration, error) {
	switch kind {
	case domain.TokenAccess:
		return s.cfg.AccessSecret, s.cfg.AccessTTL, nil
	case domain.TokenRefresh:
		return s.cfg.RefreshSecret, s.cfg.RefreshTTL, nil
	default:
		return "", 0, fmt.Errorf("%w: unknown token kind %q", domain.ErrTokenInvalid, kind)
	}
}
