package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bar-booking/internal/handler"
	"github.com/iliyamo/bar-booking/internal/model"
)

// RegisterBookings registers the booking lifecycle endpoints.  Customers
// create and read their own bookings; confirm, check-in and complete are
// staff operations and the payment replay is admin only.  Ownership of a
// booking is checked by the service.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, a Auth) {
	customer := a.group(e, model.RoleCustomer)
	customer.POST("/bookings", h.Create)
	customer.GET("/my-bookings", h.ListMine)
	customer.GET("/bookings/:id/qr-token", h.QRToken)

	anyone := a.group(e, model.RoleCustomer, model.RoleStaff, model.RoleAdmin)
	anyone.GET("/bookings/:id", h.Get)
	anyone.POST("/bookings/:id/cancel", h.Cancel)

	staff := a.group(e, model.RoleStaff, model.RoleAdmin)
	staff.POST("/bookings/:id/confirm", h.Confirm)
	staff.POST("/bookings/:id/check-in", h.CheckIn)
	staff.POST("/bookings/:id/complete", h.Complete)

	admin := a.group(e, model.RoleAdmin)
	admin.POST("/bookings/:id/payment-confirmed", h.PaymentConfirmed)
}
