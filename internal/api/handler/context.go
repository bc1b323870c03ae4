package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

// principal returns the account bound by the Authenticate middleware. Its
// absence means the route was mounted without authentication.
func principal(c echo.Context) (*domain.Account, error) {
	p, ok := domain.PrincipalFromContext(c.Request().Context())
	if !ok {
		return nil, domain.ErrAuthenticationRequired
	}
	return p, nil
}
