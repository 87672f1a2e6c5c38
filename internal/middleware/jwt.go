package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bar-booking/internal/logging"
	"github.com/iliyamo/bar-booking/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and role into the request context.  Handlers
// read them back with UserID and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			id, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				logging.FromContext(c.Request().Context()).WithError(err).Debug("rejected access token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(userIDKey, id.UserID)
			c.Set(roleKey, id.Role)

			// Downstream log lines carry the caller.
			req := c.Request()
			entry := logging.FromContext(req.Context()).WithField("user_id", id.UserID)
			c.SetRequest(req.WithContext(logging.ToContext(req.Context(), entry)))
			return next(c)
		}
	}
}
