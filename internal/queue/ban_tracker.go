package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/bar-booking/internal/model"
)

// NoShowReporter increments a user's no-show counter in the user service.
type NoShowReporter interface {
	IncrementNoShow(ctx context.Context, userID uint64) error
}

// Claims deduplicates deliveries.
type Claims interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// BanTracker reacts to free-slot no-show events by bumping the user's
// no-show count.  Each booking is counted at most once.
type BanTracker struct {
	users  NoShowReporter
	claims Claims
}

func NewBanTracker(users NoShowReporter, claims Claims) *BanTracker {
	if users == nil || claims == nil {
		panic("nil dependency passed to NewBanTracker")
	}
	return &BanTracker{users: users, claims: claims}
}

// Handle processes one no-show delivery.  A failed increment releases the
// claim and drops the message, as does a claim store that cannot be reached.
func (t *BanTracker) Handle(ctx context.Context, d amqp.Delivery) Outcome {
	var p model.EventPayload
	if err := json.Unmarshal(d.Body, &p); err != nil || p.BookingID == 0 || p.UserID == 0 {
		log.WithField("message_id", d.MessageId).Warn("ban-tracker: malformed no-show payload")
		return Reject
	}
	logger := log.WithFields(log.Fields{"booking_id": p.BookingID, "user_id": p.UserID})

	key := fmt.Sprintf("%s:%d", model.EventBookingNoShow, p.BookingID)
	fresh, err := t.claims.Claim(ctx, key)
	if err != nil {
		logger.WithError(err).Warn("ban-tracker: claim failed, no-show dropped")
		return Reject
	}
	if !fresh {
		logger.Info("ban-tracker: duplicate no-show ignored")
		return Ack
	}

	if err := t.users.IncrementNoShow(ctx, p.UserID); err != nil {
		if rerr := t.claims.Release(ctx, key); rerr != nil {
			logger.WithError(rerr).Warn("ban-tracker: release claim failed")
		}
		logger.WithError(err).Warn("ban-tracker: increment no-show failed")
		return Reject
	}
	logger.Info("ban-tracker: no-show recorded")
	return Ack
}
