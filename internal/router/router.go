// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/esplendidez/fest-registration/internal/handler"
)

// Handlers bundles the endpoint implementations.
type Handlers struct {
	Health       *handler.HealthHandler
	Registration *handler.RegistrationHandler
	Payment      *handler.PaymentHandler
	Drafts       *handler.DraftHandler
	Admin        *handler.AdminHandler
}

// Options carries the route-level middleware built in main. Nil
// middleware entries are treated as pass-through.
type Options struct {
	AdminSecret  string
	UploadDir    string // served under /uploads when non-empty
	APILimiter   echo.MiddlewareFunc
	LoginLimiter echo.MiddlewareFunc
	StatsCache   echo.MiddlewareFunc
	Invalidate   echo.MiddlewareFunc
}

// Register mounts every route. Everything under /api shares the general
// rate limiter.
func Register(e *echo.Echo, h Handlers, o Options) {
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"success": true,
			"message": "Esplendidez 2026 Backend API",
			"health":  "/api/health",
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if o.UploadDir != "" {
		e.Static("/uploads", o.UploadDir)
	}

	api := e.Group("/api", pass(o.APILimiter))
	api.GET("/health", h.Health.Health)
	api.GET("/health/db", h.Health.DB)

	RegisterRegistration(api, h.Registration, h.Payment, o)
	RegisterDrafts(api, h.Drafts)
	RegisterAdmin(api, h.Admin, o)
}

func pass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return m
}
