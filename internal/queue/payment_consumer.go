package queue

import (
	"context"
	"encoding/json"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/bar-booking/internal/model"
)

// PaymentConfirmer applies a payment to a pending booking.
type PaymentConfirmer interface {
	ConfirmPaymentReceived(ctx context.Context, id uint64, r model.PaymentReceipt) (bool, error)
}

// PaymentConsumer confirms bookings from payment.completed messages.
type PaymentConsumer struct {
	bookings PaymentConfirmer
}

func NewPaymentConsumer(bookings PaymentConfirmer) *PaymentConsumer {
	if bookings == nil {
		panic("nil dependency passed to NewPaymentConsumer")
	}
	return &PaymentConsumer{bookings: bookings}
}

func (c *PaymentConsumer) Handle(ctx context.Context, d amqp.Delivery) Outcome {
	var msg PaymentCompletedMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.BookingID == 0 {
		log.WithField("message_id", d.MessageId).Warn("payment-consumer: malformed payment message")
		return Reject
	}
	logger := log.WithFields(log.Fields{"booking_id": msg.BookingID, "transaction_id": msg.TransactionID})

	r := model.PaymentReceipt{
		TransactionID: msg.TransactionID,
		Amount:        msg.Amount,
		PaidAt:        msg.PaidAt,
	}
	if msg.PaymentID != 0 {
		id := msg.PaymentID
		r.PaymentID = &id
	}

	_, err := c.bookings.ConfirmPaymentReceived(ctx, msg.BookingID, r)
	switch {
	case err == nil:
		return Ack
	case errors.Is(err, model.ErrNotFound):
		logger.Warn("payment-consumer: booking not found, dropping message")
		return Ack
	case model.IsIllegalTransition(err):
		logger.WithError(err).Warn("payment-consumer: booking cannot be confirmed")
		return Reject
	default:
		logger.WithError(err).Error("payment-consumer: confirm failed")
		return Requeue
	}
}
