package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts-api/internal/api/cookie"
	"github.com/99minutos/accounts-api/internal/api/metrics"
	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
)

// Authenticate resolves the session cookies into an account and binds it to
// the request context. A renewed access token is written back as a new
// access cookie before the handler runs. Failures are returned to the
// central error handler.
func Authenticate(resolver ports.SessionResolver, jar cookie.Jar) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			access, refresh := cookie.Read(c)

			sess, err := resolver.Resolve(c.Request().Context(), access, refresh)
			if err != nil {
				metrics.AuthRejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
				return err
			}

			via := "access"
			if sess.Renewed != nil {
				jar.SetAccess(c, *sess.Renewed)
				via = "refresh"
			}
			metrics.AuthResolutionsTotal.WithLabelValues(via).Inc()

			req := c.Request()
			c.SetRequest(req.WithContext(domain.WithPrincipal(req.Context(), sess.Account)))
			return next(c)
		}
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuthenticationRequired):
		return "missing"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrTokenInvalid):
		return "invalid"
	case errors.Is(err, domain.ErrInvalidRefreshToken):
		return "invalid_refresh"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrCannotDeleteSelf):
		return "self"
	default:
		return "error"
	}
}
