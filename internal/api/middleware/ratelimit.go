package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/99minutos/accounts-api/internal/api/metrics"
)

// RateLimit wraps echo's rate limiter around store, keyed by client IP.
// name labels the limiter in metrics; message is the 429 error text.
func RateLimit(store echomiddleware.RateLimiterStore, name, message string) echo.MiddlewareFunc {
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			metrics.RateLimitedTotal.WithLabelValues(name).Inc()
			return echo.NewHTTPError(http.StatusTooManyRequests, message)
		},
	})
}
