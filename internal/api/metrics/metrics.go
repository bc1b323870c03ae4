// Package metrics defines and registers all custom Prometheus metrics for the
// accounts API. It is the single source of truth for metric names, labels and
// help strings. Metrics register with the default Prometheus registry on
// package init.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "accounts"

// ── Account metrics ───────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials" or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// RegistrationsTotal counts registration attempts.
// Label:
//   - result: "success", "invalid", "duplicate" or "error"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by result.",
	},
	[]string{"result"},
)

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthResolutionsTotal counts requests whose credentials resolved to an account.
// Label:
//   - via: "access" or "refresh" (access token renewed from the refresh token)
var AuthResolutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_resolutions_total",
		Help:      "Total number of authenticated requests, by credential used.",
	},
	[]string{"via"},
)

// AuthRejectionsTotal counts requests rejected by the auth middleware chain.
// Label:
//   - reason: e.g. "missing", "expired", "invalid", "forbidden"
var AuthRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_rejections_total",
		Help:      "Total number of requests rejected during authentication or authorization.",
	},
	[]string{"reason"},
)

// RateLimitedTotal counts requests refused by a rate limiter.
// Label:
//   - limiter: "api" or "login"
var RateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of requests refused by rate limiting.",
	},
	[]string{"limiter"},
)

// ── Hashing metrics ───────────────────────────────────────────────────────────

// PasswordHashDuration measures a single Argon2id computation.
// Label:
//   - op: "hash" or "verify"
var PasswordHashDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "password_hash_duration_seconds",
		Help:      "Duration of password hash and verify computations.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	},
	[]string{"op"},
)

// ObservePasswordHash records one hasher computation. It matches the
// hasher's observer signature.
func ObservePasswordHash(op string, d time.Duration) {
	PasswordHashDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RegisterHashQueue exposes the hash pool backlog as a gauge. Call it once.
func RegisterHashQueue(pending func() int) {
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hash_queue_depth",
			Help:      "Current number of password hash jobs queued or running.",
		},
		func() float64 { return float64(pending()) },
	)
}
