package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler answers liveness and readiness probes.
type HealthHandler struct {
	DB    Pinger
	Redis *redis.Client
}

// Health reports that the process is up.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// Ready checks MySQL, and Redis when configured.  Redis being down only
// degrades caching and rate limiting, so it does not fail the probe.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	checks := echo.Map{}
	status := http.StatusOK
	if err := h.DB.PingContext(ctx); err != nil {
		checks["mysql"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["mysql"] = "ok"
	}
	switch {
	case h.Redis == nil:
		checks["redis"] = "disabled"
	case h.Redis.Ping(ctx).Err() != nil:
		checks["redis"] = "degraded"
	default:
		checks["redis"] = "ok"
	}
	return c.JSON(status, checks)
}
