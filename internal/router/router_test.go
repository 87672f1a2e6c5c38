package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bar-booking/internal/handler"
	"github.com/iliyamo/bar-booking/internal/model"
	"github.com/iliyamo/bar-booking/internal/utils"
)

// The embedded nil interfaces are never called: every request below is
// rejected by middleware first.
type noBookings struct{ handler.BookingService }
type noCheckIns struct{ handler.CheckInService }

func newServer() *echo.Echo {
	e := echo.New()
	a := Auth{JWTSecret: "s"}
	RegisterRoutes(e)
	RegisterBookings(e, handler.NewBookingHandler(noBookings{}, nil), a)
	RegisterCheckIn(e, handler.NewCheckInHandler(noCheckIns{}), a)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, role string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		tok, err := utils.NewAccessToken("s", 1, role, 5)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestPublicRoutes(t *testing.T) {
	e := newServer()
	assert.Equal(t, http.StatusOK, do(t, e, http.MethodGet, "/healthz", ""))
	assert.Equal(t, http.StatusOK, do(t, e, http.MethodGet, "/metrics", ""))
}

func TestRoleGates(t *testing.T) {
	e := newServer()
	cases := []struct {
		method, path, role string
	}{
		{http.MethodPost, "/v1/bookings", model.RoleStaff},
		{http.MethodGet, "/v1/bookings/1/qr-token", model.RoleAdmin},
		{http.MethodPost, "/v1/bookings/1/confirm", model.RoleCustomer},
		{http.MethodPost, "/v1/bookings/1/check-in", model.RoleCustomer},
		{http.MethodPost, "/v1/bookings/1/complete", model.RoleCustomer},
		{http.MethodPost, "/v1/bookings/1/payment-confirmed", model.RoleStaff},
		{http.MethodPost, "/v1/checkin/scan", model.RoleCustomer},
		{http.MethodGet, "/v1/checkin/validate/abc", model.RoleCustomer},
		{http.MethodGet, "/v1/bookings/1", "GUEST"},
	}
	for _, tc := range cases {
		assert.Equal(t, http.StatusForbidden, do(t, e, tc.method, tc.path, tc.role), tc.method+" "+tc.path)
	}
	assert.Equal(t, http.StatusUnauthorized, do(t, e, http.MethodGet, "/v1/my-bookings", ""))
}
