package model

import (
	"fmt"
	"time"
)

// BookingType tells whether a booking targets a specific table (PREMIUM)
// or a zone (NORMAL).
type BookingType string

const (
	BookingNormal  BookingType = "NORMAL"
	BookingPremium BookingType = "PREMIUM"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCheckedIn BookingStatus = "CHECKED_IN"
	StatusCompleted BookingStatus = "COMPLETED"
	StatusCancelled BookingStatus = "CANCELLED"
	StatusNoShow    BookingStatus = "NO_SHOW"
)

// Action names a lifecycle operation on a booking.
type Action string

const (
	ActionConfirm    Action = "confirm"
	ActionCheckIn    Action = "check in"
	ActionComplete   Action = "complete"
	ActionCancel     Action = "cancel"
	ActionMarkNoShow Action = "mark as no-show"
)

// MaxGuests is the largest party accepted for a single booking.
const MaxGuests = 8

// transitions is the single source of truth for the booking state machine.
// An (status, action) pair missing from the table is an illegal transition.
var transitions = map[BookingStatus]map[Action]BookingStatus{
	StatusPending: {
		ActionConfirm: StatusConfirmed,
		ActionCancel:  StatusCancelled,
	},
	StatusConfirmed: {
		ActionCheckIn:    StatusCheckedIn,
		ActionCancel:     StatusCancelled,
		ActionMarkNoShow: StatusNoShow,
	},
	StatusCheckedIn: {
		ActionComplete: StatusCompleted,
		ActionCancel:   StatusCancelled,
	},
}

// NextStatus returns the status reached by applying a to from, and false
// when the transition is not allowed.
func NextStatus(from BookingStatus, a Action) (BookingStatus, bool) {
	to, ok := transitions[from][a]
	return to, ok
}

// Booking is a reservation of a table or zone for one evening slot.
//
// Fields:
//
//	TableID / ZoneID – exactly one is set, depending on Type.
//	BookingDate      – normalized to the slot hour, minute 0, bar-local time.
//	Fee              – baht, computed once at creation.
//	PaymentID        – payment collaborator's id, nil for free bookings.
//	PaymentRef       – transaction reference reported with the payment.
//	QRToken          – assigned on first confirmation, never changed afterwards.
type Booking struct {
	ID          uint64
	UserID      uint64
	TableID     *uint64
	ZoneID      *uint64
	Type        BookingType
	TimeSlot    TimeSlot
	BookingDate time.Time
	GuestCount  int
	Fee         int64
	Status      BookingStatus
	PaymentID   *uint64
	PaymentRef  *string
	QRToken     *string
	CheckedInAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewBookingInput carries the caller-supplied fields of a new booking.
type NewBookingInput struct {
	UserID     uint64
	TableID    *uint64
	ZoneID     *uint64
	Type       BookingType
	TimeSlot   TimeSlot
	Date       time.Time
	GuestCount int
}

// NewBooking validates in and returns a PENDING booking with its fee frozen.
// Callers decide whether a zero-fee booking is confirmed straight away.
func NewBooking(in NewBookingInput) (*Booking, error) {
	if in.UserID == 0 {
		return nil, NewValidationError("user_id", "is required")
	}
	if !in.TimeSlot.Valid() {
		return nil, NewValidationError("time_slot", fmt.Sprintf("unknown time slot %q", in.TimeSlot))
	}
	switch in.Type {
	case BookingPremium:
		if in.TableID == nil || *in.TableID == 0 {
			return nil, NewValidationError("table_id", "is required for PREMIUM bookings")
		}
		if in.ZoneID != nil {
			return nil, NewValidationError("zone_id", "must be empty for PREMIUM bookings")
		}
	case BookingNormal:
		if in.ZoneID == nil || *in.ZoneID == 0 {
			return nil, NewValidationError("zone_id", "is required for NORMAL bookings")
		}
		if in.TableID != nil {
			return nil, NewValidationError("table_id", "must be empty for NORMAL bookings")
		}
	default:
		return nil, NewValidationError("booking_type", fmt.Sprintf("unknown booking type %q", in.Type))
	}
	if in.GuestCount < 1 || in.GuestCount > MaxGuests {
		return nil, NewValidationError("guest_count", fmt.Sprintf("must be between 1 and %d", MaxGuests))
	}
	if in.Date.IsZero() {
		return nil, NewValidationError("booking_date", "is required")
	}
	fee, err := FeeFor(in.TimeSlot, in.Type)
	if err != nil {
		return nil, err
	}
	return &Booking{
		UserID:      in.UserID,
		TableID:     in.TableID,
		ZoneID:      in.ZoneID,
		Type:        in.Type,
		TimeSlot:    in.TimeSlot,
		BookingDate: in.TimeSlot.Start(in.Date),
		GuestCount:  in.GuestCount,
		Fee:         fee,
		Status:      StatusPending,
	}, nil
}

func (b *Booking) apply(a Action) error {
	to, ok := NextStatus(b.Status, a)
	if !ok {
		return &IllegalTransitionError{From: b.Status, Action: a}
	}
	b.Status = to
	return nil
}

// Confirm moves a PENDING booking to CONFIRMED.  paymentID is nil for
// bookings that need no payment.
func (b *Booking) Confirm(paymentID *uint64) error {
	if err := b.apply(ActionConfirm); err != nil {
		return err
	}
	b.PaymentID = paymentID
	return nil
}

// CheckIn moves a CONFIRMED booking to CHECKED_IN and stamps the arrival time.
func (b *Booking) CheckIn(now time.Time) error {
	if err := b.apply(ActionCheckIn); err != nil {
		return err
	}
	b.CheckedInAt = &now
	return nil
}

func (b *Booking) Complete() error { return b.apply(ActionComplete) }

func (b *Booking) Cancel() error { return b.apply(ActionCancel) }

// MarkNoShow moves a CONFIRMED booking to NO_SHOW once the grace period of
// its slot has elapsed at now.
func (b *Booking) MarkNoShow(now time.Time) error {
	if _, ok := NextStatus(b.Status, ActionMarkNoShow); !ok {
		return &IllegalTransitionError{From: b.Status, Action: ActionMarkNoShow}
	}
	if !b.PastGrace(now) {
		return ErrGracePeriodActive
	}
	return b.apply(ActionMarkNoShow)
}

// SlotStart is the instant the booked sitting begins.
func (b *Booking) SlotStart() time.Time { return b.TimeSlot.Start(b.BookingDate) }

// PastGrace reports whether now is strictly after the slot start plus the
// grace period.
func (b *Booking) PastGrace(now time.Time) bool {
	return now.After(b.TimeSlot.GraceDeadline(b.BookingDate))
}

func (b *Booking) IsFreeSlot() bool { return b.TimeSlot.IsFree() }

// NeedsPayment is false for zero-fee bookings, which confirm at creation.
func (b *Booking) NeedsPayment() bool { return b.Fee > 0 }

// Ticketed reports whether the booking is in a status that carries an
// active QR token.
func (b *Booking) Ticketed() bool {
	switch b.Status {
	case StatusConfirmed, StatusCheckedIn, StatusCompleted:
		return true
	}
	return false
}

// AssignQRToken attaches token unless one is already set.  It returns the
// token the booking ends up with.
func (b *Booking) AssignQRToken(token string) string {
	if b.QRToken == nil {
		b.QRToken = &token
	}
	return *b.QRToken
}

// ActiveQRToken returns the booking's token while the booking is ticketed.
func (b *Booking) ActiveQRToken() (string, bool) {
	if b.QRToken == nil || !b.Ticketed() {
		return "", false
	}
	return *b.QRToken, true
}
