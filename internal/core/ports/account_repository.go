package ports

import (
	"context"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

// AccountChanges lists the fields of an update. Nil fields are left untouched.
type AccountChanges struct {
	Email        *string
	PasswordHash *string
	Role         *domain.Role
}

// Empty reports whether the update would change nothing.
func (c AccountChanges) Empty() bool {
	return c.Email == nil && c.PasswordHash == nil && c.Role == nil
}

// AccountRepository is the credential store.
//
// Implementations must enforce username and email uniqueness atomically with
// the write and report collisions as domain.ErrDuplicateAccount. Lookups of
// absent accounts return domain.ErrUserNotFound.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	ListUsernames(ctx context.Context) ([]string, error)
	Update(ctx context.Context, username string, changes AccountChanges) (*domain.Account, error)
	Delete(ctx context.Context, username string) error
}
