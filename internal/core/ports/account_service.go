package ports

import (
	"context"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

// RegisterInput is the DTO for a new registration.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// UpdateAccountInput carries the optional fields of an account update.
type UpdateAccountInput struct {
	Email    *string
	Password *string
	Role     *string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Account *domain.Account
	Access  domain.IssuedToken
	Refresh domain.IssuedToken
}

// AccountService defines the account use cases. Returned accounts never
// carry a password hash.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.Account, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	ListUsernames(ctx context.Context) ([]string, error)
	Get(ctx context.Context, username string) (*domain.Account, error)
	Update(ctx context.Context, principal *domain.Account, username string, in UpdateAccountInput) (*domain.Account, error)
	Delete(ctx context.Context, principal *domain.Account, username string) error
}
