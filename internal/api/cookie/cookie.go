// Package cookie reads and writes the session cookies.
package cookie

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

const (
	AccessName  = "jwt"
	RefreshName = "refreshToken"
)

// Jar writes session cookies with a fixed security profile.
type Jar struct {
	Secure bool
}

func (j Jar) SetAccess(c echo.Context, tok domain.IssuedToken) {
	c.SetCookie(j.build(AccessName, tok.Value, tok.ExpiresAt))
}

func (j Jar) SetRefresh(c echo.Context, tok domain.IssuedToken) {
	c.SetCookie(j.build(RefreshName, tok.Value, tok.ExpiresAt))
}

// Clear expires both session cookies.
func (j Jar) Clear(c echo.Context) {
	for _, name := range []string{AccessName, RefreshName} {
		ck := j.build(name, "", time.Unix(0, 0))
		ck.MaxAge = -1
		c.SetCookie(ck)
	}
}

func (j Jar) build(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   j.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// Read returns the access and refresh cookie values, empty when absent.
func Read(c echo.Context) (access, refresh string) {
	if ck, err := c.Cookie(AccessName); err == nil {
		access = ck.Value
	}
	if ck, err := c.Cookie(RefreshName); err == nil {
		refresh = ck.Value
	}
	return access, refresh
}
