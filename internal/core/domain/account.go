package domain

import (
	"strings"
	"time"
)

// Role is the authorisation tier of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// MinPasswordLength is the shortest plaintext password accepted on
// registration and password change.
const MinPasswordLength = 6

// Account models a registered user.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the account holds the admin role.
func (a *Account) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// Public returns a copy of the account with the password hash cleared.
func (a *Account) Public() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.PasswordHash = ""
	return &clone
}

// NormalizeUsername trims surrounding whitespace. Usernames stay case-sensitive.
func NormalizeUsername(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
