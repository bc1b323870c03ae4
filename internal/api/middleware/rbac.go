package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts-api/internal/api/metrics"
	"github.com/99minutos/accounts-api/internal/core/domain"
)

// TargetParam is the route parameter naming the addressed account.
const TargetParam = "username"

// Authorize applies policies in order to the principal bound by Authenticate
// and the account named by the :username route parameter.
func Authorize(policies ...domain.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, _ := domain.PrincipalFromContext(c.Request().Context())
			if err := domain.Evaluate(principal, c.Param(TargetParam), policies...); err != nil {
				metrics.AuthRejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
				return err
			}
			return next(c)
		}
	}
}

// RBAC admits principals holding one of roles.
func RBAC(roles ...domain.Role) echo.MiddlewareFunc {
	return Authorize(domain.RequireRole(roles...))
}
