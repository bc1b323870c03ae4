package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
)

// SessionService resolves request credentials into an authenticated account.
type SessionService struct {
	tokens ports.TokenService
	repo   ports.AccountRepository
	log    zerolog.Logger
}

func NewSessionService(tokens ports.TokenService, repo ports.AccountRepository, log zerolog.Logger) *SessionService {
	return &SessionService{tokens: tokens, repo: repo, log: log}
}

// Resolve runs the credential state machine:
//
//  1. A valid access token authenticates directly.
//  2. An expired access token falls back to the refresh token when one is
//     present; a malformed or forged access token never does.
//  3. With no access token, a valid refresh token authenticates and mints a
//     replacement access token, returned in Session.Renewed.
//  4. With neither token the request is rejected.
//
// The account is loaded from the store on every path, so role changes take
// effect without reissuing tokens.
func (s *SessionService) Resolve(ctx context.Context, accessToken, refreshToken string) (*domain.Session, error) {
	if accessToken != "" {
		accountID, err := s.tokens.Verify(accessToken, domain.TokenAccess)
		switch {
		case err == nil:
			account, err := s.load(ctx, accountID)
			if err != nil {
				return nil, err
			}
			return &domain.Session{Account: account}, nil
		case errors.Is(err, domain.ErrTokenExpired) && refreshToken != "":
			s.log.Debug().Msg("access token expired, trying refresh token")
		case errors.Is(err, domain.ErrTokenExpired):
			return nil, domain.ErrTokenExpired
		default:
			return nil, domain.ErrTokenInvalid
		}
	}

	if refreshToken == "" {
		return nil, domain.ErrAuthenticationRequired
	}

	renewed, accountID, err := s.tokens.ReissueAccessFromRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRefreshToken) {
			return nil, domain.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("reissue access token: %w", err)
	}

	account, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("account_id", account.ID).Msg("access token renewed from refresh token")
	return &domain.Session{Account: account, Renewed: &renewed}, nil
}

func (s *SessionService) load(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("load session account: %w", err)
	}
	return account.Public(), nil
}
