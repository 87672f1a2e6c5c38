package model

import (
	"fmt"
	"time"
)

// TimeSlot is one of the fixed evening sittings offered by the bar.  Each
// slot maps to a clock hour that is independent of the calendar date.
type TimeSlot string

const (
	Slot2000 TimeSlot = "SLOT_20_00"
	Slot2100 TimeSlot = "SLOT_21_00"
	Slot2200 TimeSlot = "SLOT_22_00"
)

// GracePeriod is how long after the slot start a confirmed guest may still
// arrive before the booking is treated as a no-show.
const GracePeriod = 15 * time.Minute

var slotHours = map[TimeSlot]int{
	Slot2000: 20,
	Slot2100: 21,
	Slot2200: 22,
}

// ParseTimeSlot accepts the enum form ("SLOT_21_00") as well as the clock
// form ("21:00") used by the booking form.
func ParseTimeSlot(s string) (TimeSlot, error) {
	if _, ok := slotHours[TimeSlot(s)]; ok {
		return TimeSlot(s), nil
	}
	for slot, h := range slotHours {
		if s == fmt.Sprintf("%02d:00", h) {
			return slot, nil
		}
	}
	return "", NewValidationError("time_slot", fmt.Sprintf("unknown time slot %q", s))
}

// Valid reports whether s is one of the known slots.
func (s TimeSlot) Valid() bool {
	_, ok := slotHours[s]
	return ok
}

// Hour returns the clock hour the slot starts at, or -1 for an unknown slot.
func (s TimeSlot) Hour() int {
	h, ok := slotHours[s]
	if !ok {
		return -1
	}
	return h
}

// Start returns the slot start on the calendar day of date, in date's
// location.
func (s TimeSlot) Start(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, s.Hour(), 0, 0, 0, date.Location())
}

// GraceDeadline is the instant after which a CONFIRMED booking on this slot
// becomes a no-show.
func (s TimeSlot) GraceDeadline(date time.Time) time.Time {
	return s.Start(date).Add(GracePeriod)
}

// IsFree reports whether the slot is the 20:00 free slot.  The slot counts
// as free whatever the booking type or fee, so a PREMIUM 20:00 booking is
// still on it.  Only no-shows on the free slot count towards a ban.
func (s TimeSlot) IsFree() bool { return s == Slot2000 }

// fees holds the price, in baht, of each slot and booking type.
var fees = map[TimeSlot]map[BookingType]int64{
	Slot2000: {BookingNormal: 0, BookingPremium: 150},
	Slot2100: {BookingNormal: 500, BookingPremium: 500},
	Slot2200: {BookingNormal: 1000, BookingPremium: 1000},
}

// FeeFor returns the fee charged for a booking of type t on slot s.
func FeeFor(s TimeSlot, t BookingType) (int64, error) {
	byType, ok := fees[s]
	if !ok {
		return 0, NewValidationError("time_slot", fmt.Sprintf("unknown time slot %q", s))
	}
	fee, ok := byType[t]
	if !ok {
		return 0, NewValidationError("booking_type", fmt.Sprintf("unknown booking type %q", t))
	}
	return fee, nil
}
