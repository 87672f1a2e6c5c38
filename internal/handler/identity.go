package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bar-booking/internal/middleware"
	"github.com/iliyamo/bar-booking/internal/service"
)

// actor returns the authenticated caller.  ok is false when JWTAuth did
// not run for the route.
func actor(c echo.Context) (service.Actor, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{UserID: id, Role: middleware.Role(c)}, true
}

// pathID parses the positive integer path parameter name.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id != 0
}
