package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Pinger reports database reachability.
type Pinger func(ctx context.Context) error

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	started time.Time
	ping    Pinger
}

func NewHealthHandler(ping Pinger) *HealthHandler {
	return &HealthHandler{started: time.Now(), ping: ping}
}

// Health is the liveness probe used by load balancers.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"message":   "Esplendidez 2026 Backend Server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"uptime":    time.Since(h.started).Seconds(),
	})
}

// DB reports whether the database answers a trivial query.
func (h *HealthHandler) DB(c echo.Context) error {
	if err := h.ping(c.Request().Context()); err != nil {
		log.Warn().Err(err).Msg("database health check failed")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"success": false, "status": "unavailable", "connected": false})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "status": "ok", "connected": true})
}
