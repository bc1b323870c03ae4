package domain

import "errors"

// Input and persistence errors.
var (
	ErrValidation       = errors.New("validation failed")
	ErrDuplicateAccount = errors.New("user with this email or username already exists")
	ErrUserNotFound     = errors.New("user not found")
)

// Authentication errors. All of them surface as 401.
var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrTokenInvalid           = errors.New("invalid token")
	ErrTokenExpired           = errors.New("token expired")
	ErrInvalidRefreshToken    = errors.New("invalid refresh token")
	// ErrAccountNotFound is returned when a valid token names an account
	// that no longer exists.
	ErrAccountNotFound = errors.New("account not found")
)

// Authorization errors.
var (
	ErrForbidden        = errors.New("access forbidden")
	ErrCannotDeleteSelf = errors.New("you cannot delete your own account")
)

// Password hashing errors.
var (
	ErrMalformedHash = errors.New("malformed password hash")
	ErrHashTimeout   = errors.New("password hashing timed out")
)

// ValidationError carries a client-facing message for malformed input.
// errors.Is(err, ErrValidation) holds for every ValidationError.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError returns a *ValidationError with the given message.
func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}
