package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the service and handler layers.  Handlers map
// them to HTTP status codes in one place.
var (
	// ErrNotFound is returned when a booking or check-in does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidToken means the QR token is unknown or its cache entry expired.
	ErrInvalidToken = errors.New("invalid or expired QR token")
	// ErrAlreadyCheckedIn means a check-in record already exists for the booking.
	ErrAlreadyCheckedIn = errors.New("booking already checked in")
	// ErrBannedFromFreeSlot is returned when a banned user tries to book the free slot.
	ErrBannedFromFreeSlot = errors.New("user is banned from the free slot")
	// ErrForbidden is returned when the caller may not act on the booking.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports malformed input.  It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// IllegalTransitionError is returned when an action is not allowed from the
// booking's current status.  The booking is left unchanged.
type IllegalTransitionError struct {
	From   BookingStatus
	Action Action
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s booking", e.Action, e.From)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsIllegalTransition reports whether err wraps an IllegalTransitionError.
func IsIllegalTransition(err error) bool {
	var t *IllegalTransitionError
	return errors.As(err, &t)
}

// ErrGracePeriodActive is returned when a booking is marked as a no-show
// before its slot's grace period has elapsed.
var ErrGracePeriodActive = errors.New("grace period has not elapsed")
