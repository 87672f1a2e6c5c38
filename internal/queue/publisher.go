package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/bar-booking/internal/logging"
	"github.com/iliyamo/bar-booking/internal/model"
)

// Publisher sends outbox events to the booking topic exchange.  The channel
// runs in confirm mode and Publish returns only after the broker has
// acknowledged the message, so the relay never marks an unconfirmed event
// processed.  A broken connection is dropped and redialled on the next
// publish.
type Publisher struct {
	url      string
	exchange string
	bindings []Binding

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a publisher for exchange.  bindings are declared on
// connect so messages routed before their consumer first starts are kept.
func NewPublisher(url, exchange string, bindings ...Binding) *Publisher {
	return &Publisher{url: url, exchange: exchange, bindings: bindings}
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareExchange(ch, p.exchange); err != nil {
		_ = conn.Close()
		return nil, err
	}
	for _, b := range p.bindings {
		if err := b.declare(ch); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Publish sends ev under routingKey and waits for the broker confirm.
func (p *Publisher) Publish(ctx context.Context, routingKey string, ev model.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         string(ev.EventType),
		Timestamp:    time.Now().UTC(),
		Headers: amqp.Table{
			"outbox_event_id": strconv.FormatUint(ev.ID, 10),
			"booking_id":      strconv.FormatUint(ev.BookingID, 10),
		},
		Body: ev.Payload,
	}
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.CorrelationId = id
	}
	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		p.reset()
		return fmt.Errorf("await confirm %s: %w", routingKey, err)
	}
	if !acked {
		return errors.New("broker nacked " + routingKey)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
