package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, 429, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil {
			log.Debug().Err(he.Internal).Str("path", c.Path()).Msg("http error")
		}
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Message
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrCannotDeleteSelf),
		errors.Is(err, domain.ErrDuplicateAccount):
		return http.StatusBadRequest, sentinelMessage(err)
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrAuthenticationRequired),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrInvalidRefreshToken),
		errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusUnauthorized, sentinelMessage(err)
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, domain.ErrForbidden.Error()
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, domain.ErrUserNotFound.Error()
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}

// sentinelMessage returns the text of the outermost known sentinel so that
// wrapped causes (parser errors, driver errors) never reach the client.
func sentinelMessage(err error) string {
	for _, s := range []error{
		domain.ErrCannotDeleteSelf,
		domain.ErrDuplicateAccount,
		domain.ErrInvalidCredentials,
		domain.ErrAuthenticationRequired,
		domain.ErrTokenExpired,
		domain.ErrInvalidRefreshToken,
		domain.ErrTokenInvalid,
		domain.ErrAccountNotFound,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}
