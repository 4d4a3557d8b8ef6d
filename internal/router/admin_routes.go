package router

import (
	"github.com/labstack/echo/v4"

	"github.com/esplendidez/fest-registration/internal/handler"
	"github.com/esplendidez/fest-registration/internal/middleware"
	"github.com/esplendidez/fest-registration/internal/utils"
)

// RegisterAdmin mounts the dashboard routes. Login is public but has its
// own stricter limiter; everything else needs an admin token. Mutations
// drop the cached stats.
func RegisterAdmin(api *echo.Group, a *handler.AdminHandler, o Options) {
	api.POST("/admin/login", a.Login, pass(o.LoginLimiter))

	g := api.Group("/admin",
		middleware.AdminAuth(o.AdminSecret),
		middleware.RequireRole(utils.AdminRole),
	)
	invalidate := pass(o.Invalidate)

	g.GET("/stats", a.Stats, pass(o.StatsCache))
	g.GET("/image/:registrationId/:type", a.Image)
	g.GET("/export", a.Export)

	g.PATCH("/payment-status", a.PaymentStatus, invalidate)
	g.PATCH("/bulk-payment-status", a.BulkPaymentStatus, invalidate)
	g.PATCH("/registrations/:id", a.UpdateRegistration, invalidate)
	g.DELETE("/registrations/:id", a.DeleteRegistration, invalidate)
}
