package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bar-booking/internal/model"
)

// CheckInService is the part of service.CheckInService the HTTP layer uses.
type CheckInService interface {
	Scan(ctx context.Context, token string, staffID uint64) (*model.CheckIn, error)
	Validate(ctx context.Context, token string) (uint64, bool, error)
	ForBooking(ctx context.Context, bookingID uint64) (*model.CheckIn, error)
}

// CheckInHandler serves the door staff endpoints.
type CheckInHandler struct {
	checkIns CheckInService
}

func NewCheckInHandler(svc CheckInService) *CheckInHandler {
	if svc == nil {
		panic("nil service passed to NewCheckInHandler")
	}
	return &CheckInHandler{checkIns: svc}
}

type checkInResponse struct {
	ID          uint64    `json:"id"`
	BookingID   uint64    `json:"booking_id"`
	CheckedInAt time.Time `json:"checked_in_at"`
	StaffID     uint64    `json:"staff_id"`
	Manual      bool      `json:"manual"`
}

func toCheckInResponse(ci *model.CheckIn) checkInResponse {
	return checkInResponse{
		ID:          ci.ID,
		BookingID:   ci.BookingID,
		CheckedInAt: ci.CheckedInAt,
		StaffID:     ci.StaffID,
		Manual:      ci.QRToken == "",
	}
}

// Scan handles POST /v1/checkin/scan with body {"qr_token": "..."}.
func (h *CheckInHandler) Scan(c echo.Context) error {
	who, ok := actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		QRToken string `json:"qr_token"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	tok := strings.TrimSpace(body.QRToken)
	if tok == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "qr_token is required"})
	}
	ci, err := h.checkIns.Scan(c.Request().Context(), tok, who.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toCheckInResponse(ci))
}

// Validate handles GET /v1/checkin/validate/:token.  It never consumes
// the token.
func (h *CheckInHandler) Validate(c echo.Context) error {
	id, valid, err := h.checkIns.Validate(c.Request().Context(), c.Param("token"))
	if err != nil {
		return writeError(c, err)
	}
	resp := echo.Map{"valid": valid}
	if valid {
		resp["booking_id"] = id
	}
	return c.JSON(http.StatusOK, resp)
}

// ForBooking handles GET /v1/checkin/bookings/:id.
func (h *CheckInHandler) ForBooking(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ci, err := h.checkIns.ForBooking(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toCheckInResponse(ci))
}
