package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bar-booking/internal/cache"
	"github.com/iliyamo/bar-booking/internal/logging"
	"github.com/iliyamo/bar-booking/internal/metrics"
	"github.com/iliyamo/bar-booking/internal/model"
	"github.com/iliyamo/bar-booking/internal/repository"
)

// CheckInService admits guests by scanning the QR token on their booking.
// A token is single use: a successful scan removes it from the index.
type CheckInService struct {
	tx       Transactor
	bookings BookingStore
	checkIns CheckInStore
	tokens   TokenIndex
	now      func() time.Time
}

func NewCheckInService(tx Transactor, bookings BookingStore, checkIns CheckInStore, tokens TokenIndex, now func() time.Time) *CheckInService {
	if now == nil {
		now = time.Now
	}
	return &CheckInService{tx: tx, bookings: bookings, checkIns: checkIns, tokens: tokens, now: now}
}

// lookup resolves token to a booking id, mapping a missing entry to
// model.ErrInvalidToken.
func (s *CheckInService) lookup(ctx context.Context, token string) (uint64, error) {
	if token == "" {
		return 0, model.ErrInvalidToken
	}
	id, err := s.tokens.Lookup(ctx, token)
	if errors.Is(err, cache.ErrTokenNotFound) {
		return 0, model.ErrInvalidToken
	}
	return id, err
}

// Scan checks in the booking behind token on behalf of staffID.
func (s *CheckInService) Scan(ctx context.Context, token string, staffID uint64) (*model.CheckIn, error) {
	bookingID, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx).WithFields(logrus.Fields{"booking_id": bookingID, "staff_id": staffID})

	now := s.now()
	c := &model.CheckIn{BookingID: bookingID, QRToken: token, StaffID: staffID}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.checkIns.GetByBookingID(ctx, bookingID); err == nil {
			return model.ErrAlreadyCheckedIn
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		b, err := s.bookings.GetForUpdate(ctx, bookingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return model.ErrInvalidToken
			}
			return err
		}
		if b.QRToken == nil || *b.QRToken != token {
			return model.ErrInvalidToken
		}
		if err := b.CheckIn(now); err != nil {
			return err
		}
		c.CheckedInAt = *b.CheckedInAt
		if err := s.checkIns.Create(ctx, c); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return model.ErrAlreadyCheckedIn
			}
			return err
		}
		b.UpdatedAt = now
		return s.bookings.Update(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Delete(ctx, token); err != nil {
		log.WithError(err).Warn("check-in: could not consume qr token")
	}
	metrics.BookingTransitions.WithLabelValues(string(model.StatusCheckedIn)).Inc()
	log.Info("guest checked in")
	return c, nil
}

// Validate reports whether token is currently scannable without consuming
// it.
func (s *CheckInService) Validate(ctx context.Context, token string) (uint64, bool, error) {
	id, err := s.lookup(ctx, token)
	if errors.Is(err, model.ErrInvalidToken) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// ForBooking returns the check-in record of a booking.
func (s *CheckInService) ForBooking(ctx context.Context, bookingID uint64) (*model.CheckIn, error) {
	c, err := s.checkIns.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, translate(err)
	}
	return c, nil
}
