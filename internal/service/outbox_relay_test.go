package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bar-booking/internal/model"
)

func seedEvents(t *testing.T, db *memDB, types ...model.EventType) {
	t.Helper()
	base := time.Date(2026, 10, 14, 20, 0, 0, 0, ict)
	for i, typ := range types {
		ev, err := model.NewOutboxEvent(typ, &model.Booking{ID: uint64(100 + i), UserID: 7}, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.NoError(t, memOutbox{db}.Append(context.Background(), ev))
	}
}

func TestRelayPublishesInOrderAndMarksProcessed(t *testing.T) {
	db := newMemDB()
	seedEvents(t, db, model.EventBookingConfirmed, model.EventBookingNoShow, model.EventBookingCancelled)
	pub := &recordingPublisher{}
	relay := NewOutboxRelay(memOutbox{db}, pub, 10, nil)

	res, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RelayResult{Read: 3, Published: 3}, res)

	require.Len(t, pub.sent, 3)
	assert.Equal(t, "booking.booking_confirmed", pub.sent[0].key)
	assert.Equal(t, "booking.noshow", pub.sent[1].key)
	assert.Equal(t, "booking.booking_cancelled", pub.sent[2].key)
	for _, ev := range db.events {
		assert.True(t, ev.Processed)
		assert.NotNil(t, ev.ProcessedAt)
	}

	res, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Read)
	assert.Len(t, pub.sent, 3, "processed events are never republished")
}

func TestRelayRetriesFailedEventNextCycle(t *testing.T) {
	db := newMemDB()
	seedEvents(t, db, model.EventBookingConfirmed, model.EventBookingCompleted)
	failing := db.events[0].ID
	pub := &recordingPublisher{fail: map[uint64]error{failing: errBroker}}
	relay := NewOutboxRelay(memOutbox{db}, pub, 10, nil)

	res, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RelayResult{Read: 2, Published: 1, Failed: 1}, res)
	assert.False(t, db.events[0].Processed)
	assert.True(t, db.events[1].Processed)

	delete(pub.fail, failing)
	res, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RelayResult{Read: 1, Published: 1}, res)
	assert.True(t, db.events[0].Processed)
	assert.Len(t, pub.sent, 2)
}

func TestRelayBatchSize(t *testing.T) {
	db := newMemDB()
	seedEvents(t, db, model.EventBookingConfirmed, model.EventBookingConfirmed, model.EventBookingConfirmed)
	pub := &recordingPublisher{}

	res, err := NewOutboxRelay(memOutbox{db}, pub, 2, nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Published)
	assert.Equal(t, uint64(100), pub.sent[0].ev.BookingID)
}

func TestRelayPrune(t *testing.T) {
	db := newMemDB()
	seedEvents(t, db, model.EventBookingConfirmed, model.EventBookingCompleted)
	old := time.Date(2026, 9, 1, 0, 0, 0, 0, ict)
	require.NoError(t, memOutbox{db}.MarkProcessed(context.Background(), db.events[0].ID, old))

	now := func() time.Time { return time.Date(2026, 10, 14, 0, 0, 0, 0, ict) }
	n, err := NewOutboxRelay(memOutbox{db}, &recordingPublisher{}, 10, now).Prune(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.Len(t, db.events, 1)
	assert.False(t, db.events[0].Processed)
}

func TestRunEveryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RunEvery(ctx, "test", time.Millisecond, func(context.Context) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 3)
}
