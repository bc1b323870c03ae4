package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/99minutos/accounts-api/internal/api/cookie"
	"github.com/99minutos/accounts-api/internal/api/handler"
	"github.com/99minutos/accounts-api/internal/api/middleware"
	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
	"github.com/99minutos/accounts-api/internal/infrastructure/config"

	_ "github.com/99minutos/accounts-api/docs"
)

const bodyLimit = "1M"

// Deps are the collaborators the HTTP layer is wired to.
type Deps struct {
	Config   *config.Config
	Log      zerolog.Logger
	Accounts ports.AccountService
	Sessions ports.SessionResolver

	// Database backs the liveness probe; Dependencies are added to readiness.
	Database     handler.Pinger
	Dependencies map[string]handler.Pinger

	// Limiters are skipped when nil or when rate limiting is inactive.
	APILimiter   echomiddleware.RateLimiterStore
	LoginLimiter echomiddleware.RateLimiterStore

	// Registerer and Gatherer enable request metrics and /metrics when set.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	cfg := d.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "0",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		HSTSMaxAge:            15552000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "no-referrer",
	}))
	e.Use(echomiddleware.CORSWithConfig(corsConfig(cfg)))
	e.Use(echomiddleware.BodyLimit(bodyLimit))

	if d.Registerer != nil && d.Gatherer != nil {
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Subsystem:  "http",
			Registerer: d.Registerer,
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/metrics"
			},
		}))
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	if !cfg.IsProduction() {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	// --- Dependencies ---
	jar := cookie.Jar{Secure: cfg.IsProduction()}
	users := handler.NewUserHandler(d.Accounts, jar)
	health := handler.NewHealthHandler(d.Database, d.Dependencies, cfg.AppVersion)
	authenticate := middleware.Authenticate(d.Sessions, jar)

	g := e.Group(cfg.APIPrefix)
	if limiter := d.APILimiter; limiter != nil && cfg.RateLimitActive() {
		g.Use(middleware.RateLimit(limiter, "api", "Too many requests, please try again later"))
	}
	loginMW := []echo.MiddlewareFunc{}
	if limiter := d.LoginLimiter; limiter != nil && cfg.RateLimitActive() {
		loginMW = append(loginMW, middleware.RateLimit(limiter, "login", "Too many login attempts, please try again later"))
	}

	// --- Public routes ---
	g.POST("/users", users.Register)
	g.POST("/login", users.Login, loginMW...)
	g.POST("/logout", users.Logout)

	// --- Authenticated routes ---
	g.GET("/users", users.List, authenticate)
	g.GET("/users/:username", users.Get, authenticate)
	g.PUT("/users/:username", users.Update, authenticate, middleware.Authorize(domain.OwnerOrAdmin()))
	g.DELETE("/users/:username", users.Delete, authenticate,
		middleware.RBAC(domain.RoleAdmin), middleware.Authorize(domain.NotSelf()))

	// --- Health probes (no auth required) ---
	g.GET("/health", health.Liveness)
	g.GET("/health/ready", health.Readiness)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	})

	return e
}

func corsConfig(cfg *config.Config) echomiddleware.CORSConfig {
	c := echomiddleware.CORSConfig{
		AllowCredentials: true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAccept, echo.HeaderOrigin},
	}
	if cfg.IsProduction() {
		c.AllowOrigins = cfg.CORSAllowedOrigins
		return c
	}
	// Reflect any origin outside production.
	c.AllowOrigins = []string{"*"}
	c.UnsafeWildcardOriginWithAllowCredentials = true
	return c
}
