package middleware

import "github.com/labstack/echo/v4"

// Context keys written by JWTAuth.
const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// UserID returns the authenticated user's id.  ok is false on routes that
// are not behind JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(userIDKey).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated user's role or an empty string.
func Role(c echo.Context) string {
	r, _ := c.Get(roleKey).(string)
	return r
}
