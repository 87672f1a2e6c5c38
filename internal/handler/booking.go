package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bar-booking/internal/model"
	"github.com/iliyamo/bar-booking/internal/service"
)

// BookingService is the part of service.BookingService the HTTP layer uses.
type BookingService interface {
	Create(ctx context.Context, in model.NewBookingInput) (*model.Booking, error)
	Confirm(ctx context.Context, id uint64, paymentID *uint64) (*model.Booking, error)
	ConfirmPaymentReceived(ctx context.Context, id uint64, r model.PaymentReceipt) (bool, error)
	CheckIn(ctx context.Context, id, staffID uint64) (*model.Booking, error)
	Complete(ctx context.Context, id uint64) (*model.Booking, error)
	Cancel(ctx context.Context, id uint64, actor service.Actor) (*model.Booking, error)
	Get(ctx context.Context, id uint64, actor service.Actor) (*model.Booking, error)
	ListForUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	QRToken(ctx context.Context, id uint64, actor service.Actor) (string, error)
}

// BookingHandler serves the booking lifecycle endpoints.  Authentication
// and role checks are done by middleware; ownership checks by the service.
type BookingHandler struct {
	bookings BookingService
	loc      *time.Location
}

// NewBookingHandler panics when svc is nil.  Booking dates without a zone
// are read in loc.
func NewBookingHandler(svc BookingService, loc *time.Location) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &BookingHandler{bookings: svc, loc: loc}
}

type bookingResponse struct {
	ID          uint64              `json:"id"`
	UserID      uint64              `json:"user_id"`
	TableID     *uint64             `json:"table_id,omitempty"`
	ZoneID      *uint64             `json:"zone_id,omitempty"`
	Type        model.BookingType   `json:"booking_type"`
	TimeSlot    model.TimeSlot      `json:"time_slot"`
	BookingDate string              `json:"booking_date"`
	GuestCount  int                 `json:"guest_count"`
	Fee         int64               `json:"fee"`
	Status      model.BookingStatus `json:"status"`
	PaymentID   *uint64             `json:"payment_id,omitempty"`
	PaymentRef  *string             `json:"payment_ref,omitempty"`
	CheckedInAt *time.Time          `json:"checked_in_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// toResponse omits the QR token; it is only returned to the owner by
// QRToken.
func toResponse(b *model.Booking) bookingResponse {
	return bookingResponse{
		ID:          b.ID,
		UserID:      b.UserID,
		TableID:     b.TableID,
		ZoneID:      b.ZoneID,
		Type:        b.Type,
		TimeSlot:    b.TimeSlot,
		BookingDate: b.BookingDate.Format("2006-01-02"),
		GuestCount:  b.GuestCount,
		Fee:         b.Fee,
		Status:      b.Status,
		PaymentID:   b.PaymentID,
		PaymentRef:  b.PaymentRef,
		CheckedInAt: b.CheckedInAt,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

type createBookingRequest struct {
	TableID     *uint64 `json:"table_id"`
	ZoneID      *uint64 `json:"zone_id"`
	BookingType string  `json:"booking_type"`
	TimeSlot    string  `json:"time_slot"`
	BookingDate string  `json:"booking_date"` // 2006-01-02 or RFC 3339
	GuestCount  int     `json:"guest_count"`
}

func (h *BookingHandler) parseDate(s string) (time.Time, error) {
	if d, err := time.ParseInLocation("2006-01-02", s, h.loc); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, model.NewValidationError("booking_date", "must be YYYY-MM-DD")
	}
	return d.In(h.loc), nil
}

// Create handles POST /v1/bookings.  Free bookings come back CONFIRMED,
// paid ones PENDING until the payment arrives.
func (h *BookingHandler) Create(c echo.Context) error {
	who, ok := actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body createBookingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	slot, err := model.ParseTimeSlot(body.TimeSlot)
	if err != nil {
		return writeError(c, err)
	}
	date, err := h.parseDate(body.BookingDate)
	if err != nil {
		return writeError(c, err)
	}
	b, err := h.bookings.Create(c.Request().Context(), model.NewBookingInput{
		UserID:     who.UserID,
		TableID:    body.TableID,
		ZoneID:     body.ZoneID,
		Type:       model.BookingType(strings.ToUpper(body.BookingType)),
		TimeSlot:   slot,
		Date:       date,
		GuestCount: body.GuestCount,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toResponse(b))
}

// ListMine handles GET /v1/my-bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
	who, ok := actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.bookings.ListForUser(c.Request().Context(), who.UserID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]bookingResponse, 0, len(list))
	for i := range list {
		out = append(out, toResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	return h.withBooking(c, func(ctx context.Context, id uint64, who service.Actor) (*model.Booking, error) {
		return h.bookings.Get(ctx, id, who)
	})
}

// QRToken handles GET /v1/bookings/:id/qr-token.
func (h *BookingHandler) QRToken(c echo.Context) error {
	who, ok := actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	tok, err := h.bookings.QRToken(c.Request().Context(), id, who)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking_id": id, "qr_token": tok})
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	return h.withBooking(c, func(ctx context.Context, id uint64, who service.Actor) (*model.Booking, error) {
		return h.bookings.Cancel(ctx, id, who)
	})
}

// Confirm handles POST /v1/bookings/:id/confirm.  The body may carry the
// payment id the confirmation is based on.
func (h *BookingHandler) Confirm(c echo.Context) error {
	var body struct {
		PaymentID *uint64 `json:"payment_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	return h.withBooking(c, func(ctx context.Context, id uint64, _ service.Actor) (*model.Booking, error) {
		return h.bookings.Confirm(ctx, id, body.PaymentID)
	})
}

// CheckIn handles POST /v1/bookings/:id/check-in, the manual check-in.
func (h *BookingHandler) CheckIn(c echo.Context) error {
	return h.withBooking(c, func(ctx context.Context, id uint64, who service.Actor) (*model.Booking, error) {
		return h.bookings.CheckIn(ctx, id, who.UserID)
	})
}

// Complete handles POST /v1/bookings/:id/complete.
func (h *BookingHandler) Complete(c echo.Context) error {
	return h.withBooking(c, func(ctx context.Context, id uint64, _ service.Actor) (*model.Booking, error) {
		return h.bookings.Complete(ctx, id)
	})
}

// PaymentConfirmed handles POST /v1/bookings/:id/payment-confirmed.  It
// replays a payment.completed notification by hand; bookings that are not
// PENDING are left alone and reported with applied=false.
func (h *BookingHandler) PaymentConfirmed(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body struct {
		PaymentID     *uint64 `json:"payment_id"`
		TransactionID string  `json:"transaction_id"`
		Amount        float64 `json:"amount"`
		PaidAt        string  `json:"paid_at"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	applied, err := h.bookings.ConfirmPaymentReceived(c.Request().Context(), id, model.PaymentReceipt{
		PaymentID:     body.PaymentID,
		TransactionID: body.TransactionID,
		Amount:        body.Amount,
		PaidAt:        body.PaidAt,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking_id": id, "applied": applied})
}

func (h *BookingHandler) withBooking(c echo.Context, fn func(context.Context, uint64, service.Actor) (*model.Booking, error)) error {
	who, ok := actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := fn(c.Request().Context(), id, who)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(b))
}
