package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bar-booking/internal/cache"
	"github.com/iliyamo/bar-booking/internal/model"
)

type countingReporter struct {
	calls map[uint64]int
	err   error
}

func (r *countingReporter) IncrementNoShow(_ context.Context, userID uint64) error {
	if r.err != nil {
		return r.err
	}
	if r.calls == nil {
		r.calls = map[uint64]int{}
	}
	r.calls[userID]++
	return nil
}

func newClaims(t *testing.T) (*cache.ClaimStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.NewClaimStore(rdb, "consumed:", time.Hour), mr
}

func noShowDelivery(t *testing.T, bookingID, userID uint64) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(model.EventPayload{BookingID: bookingID, UserID: userID, Timestamp: time.Now()})
	require.NoError(t, err)
	return amqp.Delivery{Body: body, RoutingKey: NoShowRoutingKey}
}

func TestBanTracker_CountsEachBookingOnce(t *testing.T) {
	claims, mr := newClaims(t)
	users := &countingReporter{}
	tracker := NewBanTracker(users, claims)
	ctx := context.Background()

	assert.Equal(t, Ack, tracker.Handle(ctx, noShowDelivery(t, 7, 42)))
	assert.Equal(t, Ack, tracker.Handle(ctx, noShowDelivery(t, 7, 42)))
	assert.Equal(t, Ack, tracker.Handle(ctx, noShowDelivery(t, 8, 42)))

	assert.Equal(t, 2, users.calls[42])
	assert.True(t, mr.Exists(fmt.Sprintf("consumed:%s:7", model.EventBookingNoShow)))
}

func TestBanTracker_FailureReleasesClaim(t *testing.T) {
	claims, mr := newClaims(t)
	users := &countingReporter{err: errors.New("user service down")}
	tracker := NewBanTracker(users, claims)

	assert.Equal(t, Reject, tracker.Handle(context.Background(), noShowDelivery(t, 7, 42)))
	assert.Empty(t, users.calls, "unclaimed no-shows are never counted")
	assert.False(t, mr.Exists("consumed:BOOKING_NO_SHOW:7"))

	users.err = nil
	assert.Equal(t, Ack, tracker.Handle(context.Background(), noShowDelivery(t, 7, 42)))
	assert.Equal(t, 1, users.calls[42])
}

func TestBanTracker_MalformedPayload(t *testing.T) {
	claims, _ := newClaims(t)
	tracker := NewBanTracker(&countingReporter{}, claims)

	assert.Equal(t, Reject, tracker.Handle(context.Background(), amqp.Delivery{Body: []byte("not json")}))
	assert.Equal(t, Reject, tracker.Handle(context.Background(), amqp.Delivery{Body: []byte(`{"bookingId":0,"userId":1}`)}))
}

func TestBanTracker_ClaimStoreDownDrops(t *testing.T) {
	claims, mr := newClaims(t)
	users := &countingReporter{}
	tracker := NewBanTracker(users, claims)
	mr.Close()

	assert.Equal(t, Reject, tracker.Handle(context.Background(), noShowDelivery(t, 7, 42)))
}

type stubConfirmer struct {
	gotID      uint64
	gotReceipt model.PaymentReceipt
	err        error
}

func (s *stubConfirmer) ConfirmPaymentReceived(_ context.Context, id uint64, r model.PaymentReceipt) (bool, error) {
	s.gotID, s.gotReceipt = id, r
	return s.err == nil, s.err
}

func TestPaymentConsumer_Outcomes(t *testing.T) {
	body := []byte(`{"paymentId":9,"bookingId":3,"amount":500,"transactionId":"tx-1","paidAt":"2026-10-14T20:00:00Z"}`)
	cases := []struct {
		name string
		body []byte
		err  error
		want Outcome
	}{
		{"confirmed", body, nil, Ack},
		{"not found", body, model.ErrNotFound, Ack},
		{"illegal", body, &model.IllegalTransitionError{From: model.StatusCancelled, Action: model.ActionConfirm}, Reject},
		{"transient", body, errors.New("db gone"), Requeue},
		{"malformed", []byte("{"), nil, Reject},
		{"missing booking", []byte(`{"paymentId":9}`), nil, Reject},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubConfirmer{err: tc.err}
			got := NewPaymentConsumer(stub).Handle(context.Background(), amqp.Delivery{Body: tc.body})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPaymentConsumer_MapsReceipt(t *testing.T) {
	stub := &stubConfirmer{}
	body := []byte(`{"paymentId":9,"bookingId":3,"amount":500,"transactionId":"tx-1","paidAt":"2026-10-14T20:00:00Z"}`)
	NewPaymentConsumer(stub).Handle(context.Background(), amqp.Delivery{Body: body})

	assert.Equal(t, uint64(3), stub.gotID)
	require.NotNil(t, stub.gotReceipt.PaymentID)
	assert.Equal(t, uint64(9), *stub.gotReceipt.PaymentID)
	assert.Equal(t, "tx-1", stub.gotReceipt.TransactionID)
	assert.Equal(t, 500.0, stub.gotReceipt.Amount)

	NewPaymentConsumer(stub).Handle(context.Background(), amqp.Delivery{Body: []byte(`{"bookingId":4}`)})
	assert.Nil(t, stub.gotReceipt.PaymentID)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "ack", Ack.String())
	assert.Equal(t, "reject", Reject.String())
	assert.Equal(t, "requeue", Requeue.String())
}
