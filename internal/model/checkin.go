package model

import "time"

// CheckIn records a guest's arrival.  There is at most one per booking.
//
// Fields:
//
//	BookingID   – checked-in booking, unique.
//	QRToken     – token that was scanned, empty for manual check-ins.
//	StaffID     – staff member who performed the check-in.
type CheckIn struct {
	ID          uint64
	BookingID   uint64
	QRToken     string
	CheckedInAt time.Time
	StaffID     uint64
}
