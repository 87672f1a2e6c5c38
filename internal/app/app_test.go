package app

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bar-booking/internal/config"
	"github.com/iliyamo/bar-booking/internal/queue"
)

func newApp(t *testing.T, userServiceURL string) (*App, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := config.Config{Location: time.UTC, QRTokenTTL: time.Hour, UserServiceURL: userServiceURL, UserServiceTimeout: time.Second}
	jobs := config.JobsConfig{
		BookingExchange: "booking.exchange",
		PaymentExchange: "payment.exchange",
		NoShowQueue:     "booking.noshow.queue",
		PaymentQueue:    "booking.payment.queue",
	}
	return New(cfg, jobs, db, rdb), mock
}

func TestNewWiresServices(t *testing.T) {
	a, mock := newApp(t, "")
	assert.NotNil(t, a.BookingService)
	assert.NotNil(t, a.CheckInService)
	assert.NotNil(t, a.NoShowDetector)
	assert.Nil(t, a.Users)

	mock.ExpectClose()
	require.NoError(t, a.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithUserService(t *testing.T) {
	a, _ := newApp(t, "http://users.local")
	assert.NotNil(t, a.Users)
}

func TestBindings(t *testing.T) {
	a, _ := newApp(t, "")
	assert.Equal(t, queue.Binding{Exchange: "booking.exchange", Queue: "booking.noshow.queue", Keys: []string{"booking.noshow"}}, a.NoShowBinding())
	assert.Equal(t, queue.Binding{Exchange: "payment.exchange", Queue: "booking.payment.queue", Keys: []string{"payment.completed"}}, a.PaymentBinding())
}
