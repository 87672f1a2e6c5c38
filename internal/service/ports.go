package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/bar-booking/internal/model"
	"github.com/iliyamo/bar-booking/internal/repository"
)

// Transactor runs fn in one database transaction carried by the context.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	GetForUpdate(ctx context.Context, id uint64) (*model.Booking, error)
	Update(ctx context.Context, b *model.Booking) error
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	ListConfirmedBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Booking, error)
}

type OutboxStore interface {
	Append(ctx context.Context, ev *model.OutboxEvent) error
	ListUnprocessed(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uint64, at time.Time) error
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type CheckInStore interface {
	Create(ctx context.Context, c *model.CheckIn) error
	GetByBookingID(ctx context.Context, bookingID uint64) (*model.CheckIn, error)
}

// TokenIndex is the short-lived token -> booking lookup used at the door.
type TokenIndex interface {
	Put(ctx context.Context, token string, bookingID uint64) error
	Lookup(ctx context.Context, token string) (uint64, error)
	Delete(ctx context.Context, token string) error
}

// EventPublisher delivers an outbox event to the broker under routingKey.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, ev model.OutboxEvent) error
}

// FreeSlotPolicy answers whether a user may still book the free slot.
type FreeSlotPolicy interface {
	CanBookFreeSlot(ctx context.Context, userID uint64) (bool, error)
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID uint64
	Role   string
}

// IsStaff reports whether the actor works at the venue.
func (a Actor) IsStaff() bool { return a.Role == model.RoleStaff || a.Role == model.RoleAdmin }

func (a Actor) owns(b *model.Booking) bool { return a.UserID == b.UserID }

// translate maps repository sentinels onto domain errors.
func translate(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return model.ErrNotFound
	}
	return err
}
