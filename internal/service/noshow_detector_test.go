package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bar-booking/internal/model"
)

func at(hour, min int) time.Time { return time.Date(2026, 10, 14, hour, min, 0, 0, ict) }

func TestSweepRespectsPerSlotGrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.paid(t, 7, model.Slot2100)

	res, err := f.detector.Sweep(ctx, at(21, 10))
	require.NoError(t, err)
	assert.Zero(t, res.Marked)
	assert.Equal(t, model.StatusConfirmed, f.db.booking(b.ID).Status)

	res, err = f.detector.Sweep(ctx, at(21, 16))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Marked)
	assert.Zero(t, res.BanSignals)
	assert.Equal(t, model.StatusNoShow, f.db.booking(b.ID).Status)
	assert.Empty(t, f.db.eventsOf(model.EventBookingNoShow), "paid no-shows carry no ban signal")
	assert.False(t, f.mr.Exists("qr:booking:"+*b.QRToken))
}

func TestSweepEmitsBanSignalForFreeSlot(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, zoneBooking(7, model.Slot2000))
	late := f.paid(t, 8, model.Slot2200)

	res, err := f.detector.Sweep(context.Background(), at(20, 16))
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Candidates: 1, Marked: 1, BanSignals: 1}, res)
	assert.Equal(t, model.StatusConfirmed, f.db.booking(late.ID).Status)

	events := f.db.eventsOf(model.EventBookingNoShow)
	require.Len(t, events, 1)
	var payload model.EventPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, b.ID, payload.BookingID)
	assert.Equal(t, uint64(7), payload.UserID)
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.create(t, zoneBooking(7, model.Slot2000))

	_, err := f.detector.Sweep(context.Background(), at(23, 0))
	require.NoError(t, err)
	res, err := f.detector.Sweep(context.Background(), at(23, 5))
	require.NoError(t, err)
	assert.Zero(t, res.Candidates)
	assert.Len(t, f.db.eventsOf(model.EventBookingNoShow), 1)
}

func TestSweepSkipsCheckedInGuests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.paid(t, 7, model.Slot2100)
	_, err := f.checkIns.Scan(ctx, *b.QRToken, 2)
	require.NoError(t, err)

	res, err := f.detector.Sweep(ctx, at(22, 0))
	require.NoError(t, err)
	assert.Zero(t, res.Marked)
	assert.Equal(t, model.StatusCheckedIn, f.db.booking(b.ID).Status)
}

func TestSweepRecordFailureDoesNotStopSweep(t *testing.T) {
	f := newFixture(t)
	f.create(t, zoneBooking(7, model.Slot2000))
	f.db.appendErr = errBroker

	res, err := f.detector.Sweep(context.Background(), at(21, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Marked)
	require.Len(t, f.db.bookings, 1)
	for _, b := range f.db.bookings {
		assert.Equal(t, model.StatusConfirmed, b.Status, "the status change rolls back with the event")
	}
}
