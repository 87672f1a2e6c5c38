package model

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType identifies a booking lifecycle event relayed through the outbox.
type EventType string

const (
	EventBookingConfirmed EventType = "BOOKING_CONFIRMED"
	EventBookingNoShow    EventType = "BOOKING_NO_SHOW"
	EventBookingCancelled EventType = "BOOKING_CANCELLED"
	EventBookingCompleted EventType = "BOOKING_COMPLETED"
)

// RoutingKey maps an event type to the topic routing key it is published
// under: "booking." plus the lowercased type, except for no-shows which use
// the shorter "booking.noshow" bound by the ban tracker.
func (t EventType) RoutingKey() string {
	if t == EventBookingNoShow {
		return "booking.noshow"
	}
	return "booking." + strings.ToLower(string(t))
}

// OutboxEvent is a booking event stored in the same transaction as the
// state change that produced it.  The relay flips Processed once the event
// has been published.
type OutboxEvent struct {
	ID          uint64
	EventType   EventType
	BookingID   uint64
	Payload     []byte
	Processed   bool
	ProcessedAt *time.Time
	CreatedAt   time.Time
}

// EventPayload is the JSON body carried by every booking event.
type EventPayload struct {
	BookingID uint64    `json:"bookingId"`
	UserID    uint64    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// NewOutboxEvent snapshots b into an unprocessed event of type t.
func NewOutboxEvent(t EventType, b *Booking, now time.Time) (*OutboxEvent, error) {
	body, err := json.Marshal(EventPayload{BookingID: b.ID, UserID: b.UserID, Timestamp: now})
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		EventType: t,
		BookingID: b.ID,
		Payload:   body,
		CreatedAt: now,
	}, nil
}
