package handler

import "github.com/99minutos/accounts-api/internal/core/domain"

type registerRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// updateRequest fields are optional; at least one must be present.
type updateRequest struct {
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=6"`
	Role     *string `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	Message string          `json:"message"`
	User    *domain.Account `json:"user"`
}

type usernameEntry struct {
	Username string `json:"username"`
}

type userListResponse struct {
	Message string          `json:"message"`
	Users   []usernameEntry `json:"users"`
	Count   int             `json:"count"`
}
