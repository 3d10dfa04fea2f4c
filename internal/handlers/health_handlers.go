package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is any dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	db       Pinger
	cache    Pinger
	storage  Pinger
	version  string
	started  time.Time
	checkTTL time.Duration
}

// NewHealthHandlers creates a new health handlers instance. cache and storage
// may be nil when the deployment runs without them.
func NewHealthHandlers(db, cache, storage Pinger, version string) *HealthHandlers {
	return &HealthHandlers{
		db:       db,
		cache:    cache,
		storage:  storage,
		version:  version,
		started:  time.Now(),
		checkTTL: 2 * time.Second,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
}

func (h *HealthHandlers) check(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, h.checkTTL)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return "unhealthy"
	}
	return "healthy"
}

// HealthCheck handles GET /health
//
//	@Summary	Dependency health
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	HealthStatus
//	@Router		/health [get]
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx := c.Request().Context()
	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services: map[string]string{
			"database": h.check(ctx, h.db),
			"redis":    h.check(ctx, h.cache),
			"storage":  h.check(ctx, h.storage),
		},
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Version: h.version,
	}

	for _, status := range health.Services {
		if status == "unhealthy" {
			health.Status = "degraded"
		}
	}

	statusCode := http.StatusOK
	if health.Services["database"] == "unhealthy" {
		health.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}
	return c.JSON(statusCode, health)
}

// ReadinessCheck handles GET /health/ready. Only the database is critical;
// the cache and archive degrade gracefully.
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	if h.check(c.Request().Context(), h.db) != "healthy" {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "Database unavailable",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ready",
		"message": "All systems operational",
	})
}

// LivenessCheck determines if the application is running (basic liveness probe)
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
