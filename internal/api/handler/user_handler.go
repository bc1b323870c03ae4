package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts-api/internal/api/cookie"
	"github.com/99minutos/accounts-api/internal/api/metrics"
	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
)

type UserHandler struct {
	accounts ports.AccountService
	jar      cookie.Jar
}

func NewUserHandler(accounts ports.AccountService, jar cookie.Jar) *UserHandler {
	return &UserHandler{accounts: accounts, jar: jar}
}

func errInvalidPayload() error {
	return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
}

// Register creates a new account with the user role.
//
// @Summary      Register a new user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /users [post]
func (h *UserHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidPayload()
	}
	req.Username = domain.NormalizeUsername(req.Username)
	req.Email = domain.NormalizeEmail(req.Email)
	if err := c.Validate(&req); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return err
	}

	account, err := h.accounts.Register(c.Request().Context(), ports.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues(registrationResult(err)).Inc()
		return err
	}
	metrics.RegistrationsTotal.WithLabelValues("success").Inc()

	return c.JSON(http.StatusCreated, userResponse{Message: "User created successfully", User: account})
}

func registrationResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrDuplicateAccount):
		return "duplicate"
	default:
		return "error"
	}
}

// Login checks credentials and sets the access and refresh cookies.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /login [post]
func (h *UserHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidPayload()
	}
	req.Username = domain.NormalizeUsername(req.Username)
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.accounts.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		result := "error"
		if errors.Is(err, domain.ErrInvalidCredentials) {
			result = "invalid_credentials"
		}
		metrics.LoginAttemptsTotal.WithLabelValues(result).Inc()
		return err
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()

	h.jar.SetAccess(c, res.Access)
	h.jar.SetRefresh(c, res.Refresh)
	return c.JSON(http.StatusOK, userResponse{Message: "Login successful", User: res.Account})
}

// Logout clears both session cookies. Issued tokens stay valid until they expire.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  messageResponse
// @Router       /logout [post]
func (h *UserHandler) Logout(c echo.Context) error {
	h.jar.Clear(c)
	return c.JSON(http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// List returns every username.
//
// @Summary      List usernames
// @Tags         users
// @Produce      json
// @Success      200  {object}  userListResponse
// @Failure      401  {object}  map[string]string
// @Router       /users [get]
func (h *UserHandler) List(c echo.Context) error {
	names, err := h.accounts.ListUsernames(c.Request().Context())
	if err != nil {
		return err
	}

	users := make([]usernameEntry, 0, len(names))
	for _, n := range names {
		users = append(users, usernameEntry{Username: n})
	}
	return c.JSON(http.StatusOK, userListResponse{
		Message: "Usernames retrieved successfully",
		Users:   users,
		Count:   len(users),
	})
}

// Get returns one account.
//
// @Summary      Get a user
// @Tags         users
// @Produce      json
// @Param        username  path      string  true  "Username"
// @Success      200       {object}  userResponse
// @Failure      401       {object}  map[string]string
// @Failure      404       {object}  map[string]string
// @Router       /users/{username} [get]
func (h *UserHandler) Get(c echo.Context) error {
	account, err := h.accounts.Get(c.Request().Context(), c.Param("username"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{Message: "User retrieved successfully", User: account})
}

// Update changes email, password or role. Role changes by non-admins are ignored.
//
// @Summary      Update a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        username  path      string         true  "Username"
// @Param        body      body      updateRequest  true  "Fields to update"
// @Success      200       {object}  userResponse
// @Failure      400       {object}  map[string]string
// @Failure      401       {object}  map[string]string
// @Failure      403       {object}  map[string]string
// @Failure      404       {object}  map[string]string
// @Router       /users/{username} [put]
func (h *UserHandler) Update(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidPayload()
	}
	if req.Email != nil {
		email := domain.NormalizeEmail(*req.Email)
		req.Email = &email
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	account, err := h.accounts.Update(c.Request().Context(), p, c.Param("username"), ports.UpdateAccountInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{Message: "User updated successfully", User: account})
}

// Delete removes an account. Admin only; admins cannot delete themselves.
//
// @Summary      Delete a user
// @Tags         users
// @Produce      json
// @Param        username  path      string  true  "Username"
// @Success      200       {object}  messageResponse
// @Failure      400       {object}  map[string]string
// @Failure      401       {object}  map[string]string
// @Failure      403       {object}  map[string]string
// @Failure      404       {object}  map[string]string
// @Router       /users/{username} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	if err := h.accounts.Delete(c.Request().Context(), p, c.Param("username")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "User deleted successfully"})
}
