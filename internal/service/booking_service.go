package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bar-booking/internal/logging"
	"github.com/iliyamo/bar-booking/internal/metrics"
	"github.com/iliyamo/bar-booking/internal/model"
	"github.com/iliyamo/bar-booking/internal/repository"
)

// BookingService owns the booking lifecycle.  Every state change reads the
// booking under a row lock, applies the model's guarded transition and
// appends the matching outbox event in the same transaction.
type BookingService struct {
	tx       Transactor
	bookings BookingStore
	outbox   OutboxStore
	checkIns CheckInStore
	qr       *QRIssuer
	freeSlot FreeSlotPolicy
	loc      *time.Location
	now      func() time.Time
}

// BookingDeps are the collaborators of a BookingService.  FreeSlot may be
// nil, which disables the free-slot ban check.
type BookingDeps struct {
	Tx       Transactor
	Bookings BookingStore
	Outbox   OutboxStore
	CheckIns CheckInStore
	QR       *QRIssuer
	FreeSlot FreeSlotPolicy
	Location *time.Location
	Now      func() time.Time
}

func NewBookingService(d BookingDeps) *BookingService {
	if d.Tx == nil || d.Bookings == nil || d.Outbox == nil || d.CheckIns == nil || d.QR == nil {
		panic("nil dependency passed to NewBookingService")
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &BookingService{
		tx:       d.Tx,
		bookings: d.Bookings,
		outbox:   d.Outbox,
		checkIns: d.CheckIns,
		qr:       d.QR,
		freeSlot: d.FreeSlot,
		loc:      d.Location,
		now:      d.Now,
	}
}

func (s *BookingService) clock() time.Time { return s.now().In(s.loc) }

// Create validates and stores a new booking.  A booking with a zero fee is
// confirmed in the same transaction: it gets its QR token and a
// BOOKING_CONFIRMED event without any payment.
func (s *BookingService) Create(ctx context.Context, in model.NewBookingInput) (*model.Booking, error) {
	in.Date = in.Date.In(s.loc)
	b, err := model.NewBooking(in)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if b.PastGrace(now) {
		return nil, model.NewValidationError("booking_date", "the time slot is already over")
	}
	if !b.NeedsPayment() {
		if err := s.checkFreeSlot(ctx, b.UserID); err != nil {
			return nil, err
		}
		if err := b.Confirm(nil); err != nil {
			return nil, err
		}
		if _, err := s.qr.Mint(b); err != nil {
			return nil, err
		}
	}
	b.CreatedAt, b.UpdatedAt = now, now

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.bookings.Create(ctx, b); err != nil {
			return err
		}
		if b.Status == model.StatusConfirmed {
			return s.appendEvent(ctx, model.EventBookingConfirmed, b, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx).WithFields(logrus.Fields{"booking_id": b.ID, "user_id": b.UserID, "fee": b.Fee})
	metrics.BookingTransitions.WithLabelValues(string(model.StatusPending)).Inc()
	if b.Status == model.StatusConfirmed {
		metrics.BookingTransitions.WithLabelValues(string(model.StatusConfirmed)).Inc()
		s.qr.publish(ctx, b)
		log.Info("booking created and auto-confirmed")
	} else {
		log.Info("booking created, awaiting payment")
	}
	return b, nil
}

// checkFreeSlot rejects users banned from the free slot.  An unreachable
// user directory does not block the booking.
func (s *BookingService) checkFreeSlot(ctx context.Context, userID uint64) error {
	if s.freeSlot == nil {
		return nil
	}
	ok, err := s.freeSlot.CanBookFreeSlot(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("user_id", userID).Warn("free-slot check unavailable, allowing booking")
		return nil
	}
	if !ok {
		return model.ErrBannedFromFreeSlot
	}
	return nil
}

// Confirm is the staff-initiated confirmation.  It fails with an
// IllegalTransitionError unless the booking is PENDING.
func (s *BookingService) Confirm(ctx context.Context, id uint64, paymentID *uint64) (*model.Booking, error) {
	b, err := s.transition(ctx, id, model.EventBookingConfirmed, func(_ context.Context, b *model.Booking) error {
		if err := b.Confirm(paymentID); err != nil {
			return err
		}
		_, err := s.qr.Mint(b)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.qr.publish(ctx, b)
	return b, nil
}

// ConfirmPaymentReceived applies a payment notification.  Notifications
// for bookings that are no longer PENDING are acknowledged without any
// change, so redelivered or duplicated notifications are harmless.  The
// returned flag tells whether the booking was confirmed by this call.
func (s *BookingService) ConfirmPaymentReceived(ctx context.Context, id uint64, r model.PaymentReceipt) (bool, error) {
	log := logging.FromContext(ctx).WithFields(logrus.Fields{"booking_id": id, "transaction_id": r.TransactionID})
	var (
		b       *model.Booking
		applied bool
	)
	now := s.clock()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.bookings.GetForUpdate(ctx, id)
		if err != nil {
			return translate(err)
		}
		if b.Status != model.StatusPending {
			return nil
		}
		if err := b.Confirm(r.PaymentID); err != nil {
			return err
		}
		if r.TransactionID != "" {
			ref := r.TransactionID
			b.PaymentRef = &ref
		}
		if _, err := s.qr.Mint(b); err != nil {
			return err
		}
		b.UpdatedAt = now
		if err := s.bookings.Update(ctx, b); err != nil {
			return err
		}
		applied = true
		return s.appendEvent(ctx, model.EventBookingConfirmed, b, now)
	})
	if err != nil {
		return false, err
	}
	if !applied {
		log.WithField("status", b.Status).Info("payment notification ignored, booking not pending")
		return false, nil
	}
	metrics.BookingTransitions.WithLabelValues(string(model.StatusConfirmed)).Inc()
	s.qr.publish(ctx, b)
	log.Info("booking confirmed by payment")
	return true, nil
}

// CheckIn is the manual check-in performed by staff without scanning.  It
// records the check-in so a later scan of the same booking is rejected.
func (s *BookingService) CheckIn(ctx context.Context, id, staffID uint64) (*model.Booking, error) {
	now := s.clock()
	b, err := s.transition(ctx, id, "", func(ctx context.Context, b *model.Booking) error {
		if err := b.CheckIn(now); err != nil {
			return err
		}
		return s.recordCheckIn(ctx, &model.CheckIn{BookingID: b.ID, CheckedInAt: now, StaffID: staffID})
	})
	if err != nil {
		return nil, err
	}
	s.qr.revoke(ctx, b)
	return b, nil
}

func (s *BookingService) recordCheckIn(ctx context.Context, c *model.CheckIn) error {
	if err := s.checkIns.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.ErrAlreadyCheckedIn
		}
		return err
	}
	return nil
}

func (s *BookingService) Complete(ctx context.Context, id uint64) (*model.Booking, error) {
	return s.transition(ctx, id, model.EventBookingCompleted, func(_ context.Context, b *model.Booking) error { return b.Complete() })
}

// Cancel cancels a booking.  Customers may only cancel their own bookings.
func (s *BookingService) Cancel(ctx context.Context, id uint64, actor Actor) (*model.Booking, error) {
	b, err := s.transition(ctx, id, model.EventBookingCancelled, func(_ context.Context, b *model.Booking) error {
		if !actor.IsStaff() && !actor.owns(b) {
			return model.ErrForbidden
		}
		return b.Cancel()
	})
	if err != nil {
		return nil, err
	}
	s.qr.revoke(ctx, b)
	return b, nil
}

// Get returns a booking visible to actor.
func (s *BookingService) Get(ctx context.Context, id uint64, actor Actor) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !actor.IsStaff() && !actor.owns(b) {
		return nil, model.ErrNotFound
	}
	return b, nil
}

func (s *BookingService) ListForUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// QRToken returns the active token of the actor's booking and renews its
// index entry.  Bookings that are not ticketed have no token.
func (s *BookingService) QRToken(ctx context.Context, id uint64, actor Actor) (string, error) {
	b, err := s.Get(ctx, id, actor)
	if err != nil {
		return "", err
	}
	return s.qr.Refresh(ctx, b)
}

// transition locks the booking, runs apply with the transaction context and persists the result together
// with an outbox event of type ev.  An empty ev records no event.
func (s *BookingService) transition(ctx context.Context, id uint64, ev model.EventType, apply func(context.Context, *model.Booking) error) (*model.Booking, error) {
	var b *model.Booking
	now := s.clock()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.bookings.GetForUpdate(ctx, id)
		if err != nil {
			return translate(err)
		}
		if err := apply(ctx, b); err != nil {
			return err
		}
		b.UpdatedAt = now
		if err := s.bookings.Update(ctx, b); err != nil {
			return err
		}
		if ev == "" {
			return nil
		}
		return s.appendEvent(ctx, ev, b, now)
	})
	if err != nil {
		return nil, err
	}
	metrics.BookingTransitions.WithLabelValues(string(b.Status)).Inc()
	logging.FromContext(ctx).WithFields(logrus.Fields{"booking_id": b.ID, "status": b.Status}).Info("booking updated")
	return b, nil
}

func (s *BookingService) appendEvent(ctx context.Context, t model.EventType, b *model.Booking, now time.Time) error {
	ev, err := model.NewOutboxEvent(t, b, now)
	if err != nil {
		return err
	}
	return s.outbox.Append(ctx, ev)
}
