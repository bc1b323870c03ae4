package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const limiterTimeout = 250 * time.Millisecond

// RateLimiter is a fixed-window request counter backed by Redis, shared by
// every API instance. Key format: ratelimit:<name>:<identifier>
//
// It satisfies echo's middleware.RateLimiterStore.
type RateLimiter struct {
	client *redis.Client
	name   string
	limit  int64
	window time.Duration
	log    zerolog.Logger
}

// NewRateLimiter allows limit requests per identifier in each window.
func NewRateLimiter(client *redis.Client, name string, limit int, window time.Duration, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		name:   name,
		limit:  int64(limit),
		window: window,
		log:    log,
	}
}

// Allow counts one request for identifier. Redis failures let the request
// through and are logged.
func (l *RateLimiter) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), limiterTimeout)
	defer cancel()

	n, err := l.incr(ctx, l.key(identifier))
	if err != nil {
		l.log.Warn().Err(err).Str("limiter", l.name).Msg("rate limiter unavailable, allowing request")
		return true, nil
	}
	return n <= l.limit, nil
}

// Name identifies the limiter in logs and metrics.
func (l *RateLimiter) Name() string {
	return l.name
}

func (l *RateLimiter) incr(ctx context.Context, key string) (int64, error) {
	n, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("rate limit incr: %w", err)
	}
	// The first hit opens the window.
	if n == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return 0, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return n, nil
}

func (l *RateLimiter) key(identifier string) string {
	return fmt.Sprintf("ratelimit:%s:%s", l.name, identifier)
}
