package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bar-booking/internal/handler"
	"github.com/iliyamo/bar-booking/internal/model"
)

// RegisterCheckIn registers the door endpoints used by staff.
func RegisterCheckIn(e *echo.Echo, h *handler.CheckInHandler, a Auth) {
	g := a.group(e, model.RoleStaff, model.RoleAdmin)
	g.POST("/checkin/scan", h.Scan)
	g.GET("/checkin/validate/:token", h.Validate)
	g.GET("/checkin/bookings/:id", h.ForBooking)
}
