// @title           Accounts API
// @version         1.0
// @description     User registration, login and role-based account management.
// @BasePath        /api
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/99minutos/accounts-api/internal/api"
	"github.com/99minutos/accounts-api/internal/api/handler"
	"github.com/99minutos/accounts-api/internal/api/metrics"
	"github.com/99minutos/accounts-api/internal/core/ports"
	"github.com/99minutos/accounts-api/internal/core/service"
	"github.com/99minutos/accounts-api/internal/infrastructure/config"
	"github.com/99minutos/accounts-api/internal/infrastructure/db/mongo"
	"github.com/99minutos/accounts-api/internal/infrastructure/db/redis"
	"github.com/99minutos/accounts-api/internal/infrastructure/hasher"
	"github.com/99minutos/accounts-api/internal/infrastructure/queue"
	"github.com/99minutos/accounts-api/pkg/logger"
)

const (
	serviceName     = "accounts-api"
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		boot := logger.Init(logger.Options{Service: serviceName})
		boot.Fatal().Err(err).Msg("configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: serviceName,
		Version: cfg.AppVersion,
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Storage ---
	client, db, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  serviceName,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := mongo.Disconnect(client, shutdownTimeout); err != nil {
			log.Error().Err(err).Msg("closing mongodb")
		}
	}()
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")

	repo := mongo.NewAccountRepository(db, cfg.Mongo.Timeout)
	if err := repo.EnsureIndexes(ctx); err != nil {
		return err
	}

	// --- Hashing ---
	pool := queue.NewPool(cfg.Hash.Workers, cfg.Hash.Timeout, log)
	// Workers outlive the signal context so requests drained by Shutdown
	// can still hash; Stop runs once run returns.
	pool.Start(context.Background())
	defer pool.Stop()
	metrics.RegisterHashQueue(pool.Pending)

	argon := hasher.NewArgon2(hasher.Config{
		Memory:      cfg.Hash.MemoryCost,
		Time:        cfg.Hash.TimeCost,
		Parallelism: cfg.Hash.Parallelism,
	}, pool).WithObserver(metrics.ObservePasswordHash)

	// --- Services ---
	tokens, err := service.NewTokenService(service.TokenConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	})
	if err != nil {
		return err
	}
	accounts := service.NewAccountService(repo, argon, tokens, log)
	sessions := service.NewSessionService(tokens, repo, log)

	if cfg.Admin.Username != "" {
		if err := accounts.EnsureAdmin(ctx, ports.RegisterInput{
			Username: cfg.Admin.Username,
			Email:    cfg.Admin.Email,
			Password: cfg.Admin.Password,
		}); err != nil {
			return err
		}
	}

	deps := api.Deps{
		Config:       cfg,
		Log:          log,
		Accounts:     accounts,
		Sessions:     sessions,
		Database:     mongo.NewPinger(client),
		Dependencies: map[string]handler.Pinger{},
		Registerer:   prometheus.DefaultRegisterer,
		Gatherer:     prometheus.DefaultGatherer,
	}

	// --- Rate limiting ---
	if cfg.RateLimitActive() {
		rdb, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, rate limiting disabled")
		} else {
			defer rdb.Close()
			deps.APILimiter = redis.NewRateLimiter(rdb, "api", cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, log)
			deps.LoginLimiter = redis.NewRateLimiter(rdb, "login", cfg.RateLimit.LoginMaxRequests, cfg.RateLimit.LoginWindow, log)
			deps.Dependencies["redis"] = redis.NewPinger(rdb)
		}
	}

	e := api.NewRouter(deps)

	// --- Serve ---
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}
