package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/esplendidez/fest-registration/internal/utils"
)

// AdminTokenHeader is the alternative header the dashboard sends its token in.
const AdminTokenHeader = "x-admin-token"

// AdminAuth validates the admin session token from either
// "Authorization: Bearer <token>" or the x-admin-token header, and stores
// the subject and role in the context for RequireRole and handlers.
func AdminAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c.Request())
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Admin authentication required"})
			}
			claims, err := utils.ParseAdminToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Invalid or expired admin token"})
			}
			c.Set(ctxAdminSubject, claims.Subject)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get(AdminTokenHeader))
}
