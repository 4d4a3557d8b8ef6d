package middleware

import "github.com/labstack/echo/v4"

// Context keys set by AdminAuth.
const (
	ctxAdminSubject = "admin_sub"
	ctxRole         = "role"
)

// AdminSubject returns the authenticated admin's subject, or "guest" when
// the request carried no valid token.
func AdminSubject(c echo.Context) string {
	if s, ok := c.Get(ctxAdminSubject).(string); ok && s != "" {
		return s
	}
	return "guest"
}
