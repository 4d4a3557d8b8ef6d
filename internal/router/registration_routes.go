package router

import (
	"github.com/labstack/echo/v4"

	"github.com/esplendidez/fest-registration/internal/handler"
	"github.com/esplendidez/fest-registration/internal/middleware"
	"github.com/esplendidez/fest-registration/internal/utils"
)

// RegisterRegistration mounts the participant-facing registration and
// payment routes. The list routes expose every participant's details and
// are restricted to admins.
func RegisterRegistration(api *echo.Group, r *handler.RegistrationHandler, p *handler.PaymentHandler, o Options) {
	adminOnly := []echo.MiddlewareFunc{middleware.AdminAuth(o.AdminSecret), middleware.RequireRole(utils.AdminRole)}

	g := api.Group("/registration")
	g.POST("/register", r.Register, pass(o.Invalidate))
	g.GET("/all", r.All, adminOnly...)
	g.GET("/category/:category", r.ByCategory, adminOnly...)
	g.GET("/event/:event", r.ByEvent, adminOnly...)
	g.GET("/utr/:utr", r.UTRAvailability)
	g.GET("/:id", r.GetByID)

	api.POST("/payment/verify", p.Verify, pass(o.Invalidate))
}

// RegisterDrafts mounts the draft cache used between the registration form
// and the payment page.
func RegisterDrafts(api *echo.Group, d *handler.DraftHandler) {
	g := api.Group("/drafts")
	g.POST("", d.Create)
	g.GET("/:id", d.Get)
	g.DELETE("/:id", d.Delete)
}
