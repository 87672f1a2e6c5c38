package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/bar-booking/internal/metrics"
)

// Outcome tells the consume loop how to settle a delivery.
type Outcome int

const (
	// Ack removes the message from the queue.
	Ack Outcome = iota
	// Reject drops the message without requeueing.
	Reject
	// Requeue returns the message to the queue for another attempt.
	Requeue
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Reject:
		return "reject"
	case Requeue:
		return "requeue"
	}
	return "unknown"
}

// Handler processes one delivery.  It must not settle the delivery itself.
type Handler func(ctx context.Context, d amqp.Delivery) Outcome

type ConsumerConfig struct {
	Name     string
	URL      string
	Binding  Binding
	Prefetch int
}

const maxBackoff = 30 * time.Second

// Consume connects to the broker, declares cfg.Binding and feeds every
// delivery to h with manual acknowledgement.  A lost connection is redialled
// with exponential backoff.  Consume returns when ctx is cancelled.
func Consume(ctx context.Context, cfg ConsumerConfig, h Handler) error {
	logger := log.WithFields(log.Fields{"consumer": cfg.Name, "queue": cfg.Binding.Queue})
	backoff := time.Second
	for {
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			logger.WithError(err).Warnf("dial broker failed; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, cfg, h)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.WithError(err).Warn("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg ConsumerConfig, h Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			log.WithError(err).Warn("set QoS failed")
		}
	}
	if err := cfg.Binding.declare(ch); err != nil {
		return err
	}

	msgs, err := ch.ConsumeWithContext(ctx, cfg.Binding.Queue, cfg.Name, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			settle(d, cfg.Binding.Queue, h(ctx, d))
		}
	}
}

func settle(d amqp.Delivery, queue string, o Outcome) {
	var err error
	switch o {
	case Ack:
		err = d.Ack(false)
	case Requeue:
		err = d.Nack(false, true)
	default:
		err = d.Nack(false, false)
	}
	if err != nil {
		log.WithError(err).WithField("queue", queue).Warn("settle delivery failed")
	}
	metrics.MessagesConsumed.WithLabelValues(queue, o.String()).Inc()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
