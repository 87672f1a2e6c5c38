package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bar-booking/internal/logging"
	"github.com/iliyamo/bar-booking/internal/metrics"
	"github.com/iliyamo/bar-booking/internal/model"
)

// NoShowDetector moves CONFIRMED bookings whose grace period has elapsed to
// NO_SHOW.  It keeps no state between sweeps, so sweeps may overlap or run
// on several instances; the row lock and status guard make each booking
// transition at most once.
type NoShowDetector struct {
	tx        Transactor
	bookings  BookingStore
	outbox    OutboxStore
	qr        *QRIssuer
	batchSize int
}

func NewNoShowDetector(tx Transactor, bookings BookingStore, outbox OutboxStore, qr *QRIssuer, batchSize int) *NoShowDetector {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &NoShowDetector{tx: tx, bookings: bookings, outbox: outbox, qr: qr, batchSize: batchSize}
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Candidates int
	Marked     int
	BanSignals int
	Skipped    int
	Failed     int
}

// Sweep flags overdue bookings as of now.  Only free-slot no-shows append a
// BOOKING_NO_SHOW event; paid no-shows are recorded without a ban signal.
func (d *NoShowDetector) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	log := logging.FromContext(ctx)
	candidates, err := d.bookings.ListConfirmedBefore(ctx, now.Add(-model.GracePeriod), d.batchSize)
	if err != nil {
		return SweepResult{}, err
	}
	overdue := lo.Filter(candidates, func(b model.Booking, _ int) bool { return b.PastGrace(now) })
	res := SweepResult{Candidates: len(candidates), Skipped: len(candidates) - len(overdue)}

	for _, c := range overdue {
		if ctx.Err() != nil {
			break
		}
		b, marked, err := d.markOne(ctx, c.ID, now)
		blog := log.WithField("booking_id", c.ID)
		switch {
		case err != nil:
			res.Failed++
			blog.WithError(err).Error("no-show: could not mark booking")
			continue
		case !marked:
			res.Skipped++
			continue
		}
		res.Marked++
		metrics.NoShowsMarked.WithLabelValues(strconv.FormatBool(b.IsFreeSlot())).Inc()
		metrics.BookingTransitions.WithLabelValues(string(model.StatusNoShow)).Inc()
		if b.IsFreeSlot() {
			res.BanSignals++
		}
		d.qr.revoke(ctx, b)
		blog.WithFields(logrus.Fields{"user_id": b.UserID, "free_slot": b.IsFreeSlot()}).Info("no-show: booking marked")
	}
	return res, nil
}

// markOne re-reads the booking under lock and marks it.  A booking that
// changed status since the coarse query is skipped.
func (d *NoShowDetector) markOne(ctx context.Context, id uint64, now time.Time) (*model.Booking, bool, error) {
	var (
		b      *model.Booking
		marked bool
	)
	err := d.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = d.bookings.GetForUpdate(ctx, id)
		if err != nil {
			return translate(err)
		}
		if err := b.MarkNoShow(now); err != nil {
			if model.IsIllegalTransition(err) || errors.Is(err, model.ErrGracePeriodActive) {
				return nil
			}
			return err
		}
		b.UpdatedAt = now
		if err := d.bookings.Update(ctx, b); err != nil {
			return err
		}
		marked = true
		if !b.IsFreeSlot() {
			return nil
		}
		ev, err := model.NewOutboxEvent(model.EventBookingNoShow, b, now)
		if err != nil {
			return err
		}
		return d.outbox.Append(ctx, ev)
	})
	return b, marked, err
}
