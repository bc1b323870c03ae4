package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	database Pinger
	deps     map[string]Pinger
	version  string
	started  time.Time
	now      func() time.Time
}

// NewHealthHandler reports database on /health and every entry of deps on
// /health/ready. database is also included in deps as "mongodb".
func NewHealthHandler(database Pinger, deps map[string]Pinger, version string) *HealthHandler {
	all := map[string]Pinger{"mongodb": database}
	for name, p := range deps {
		all[name] = p
	}
	return &HealthHandler{
		database: database,
		deps:     all,
		version:  version,
		started:  time.Now(),
		now:      time.Now,
	}
}

// memoryStats reports Go runtime memory in bytes. Sys is everything obtained
// from the OS, which bounds the resident set from above.
type memoryStats struct {
	Sys       uint64 `json:"sys"`
	HeapTotal uint64 `json:"heapTotal"`
	HeapUsed  uint64 `json:"heapUsed"`
}

type healthResponse struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Database  string      `json:"database"`
	Uptime    float64     `json:"uptime"`
	Memory    memoryStats `json:"memory"`
	Version   string      `json:"version"`
}

// Liveness handles GET /health. It always answers 200; the database field
// reports "connected" or "disconnected".
//
// @Summary      Liveness probe
// @Tags         health
// @Produce      json
// @Success      200  {object}  healthResponse
// @Router       /health [get]
func (h *HealthHandler) Liveness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	database := "connected"
	if err := h.database.Ping(ctx); err != nil {
		database = "disconnected"
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	now := h.now()
	return c.JSON(http.StatusOK, healthResponse{
		Status:    "OK",
		Timestamp: now.UTC(),
		Database:  database,
		Uptime:    now.Sub(h.started).Seconds(),
		Memory: memoryStats{
			Sys:       ms.Sys,
			HeapTotal: ms.HeapSys,
			HeapUsed:  ms.HeapAlloc,
		},
		Version: "v" + h.version,
	})
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

// Readiness handles GET /health/ready. Any unreachable dependency yields 503.
//
// @Summary      Readiness probe
// @Tags         health
// @Produce      json
// @Success      200  {object}  readinessResponse
// @Failure      503  {object}  readinessResponse
// @Router       /health/ready [get]
func (h *HealthHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]dependencyStatus, len(h.deps))
	healthy := true
	for name, p := range h.deps {
		if err := p.Ping(ctx); err != nil {
			deps[name] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			healthy = false
			continue
		}
		deps[name] = dependencyStatus{Status: "ok"}
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, readinessResponse{
		Status:       status,
		Dependencies: deps,
	})
}
