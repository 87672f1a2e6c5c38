package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Binding attaches a durable queue to a topic exchange under routing keys.
type Binding struct {
	Exchange string
	Queue    string
	Keys     []string
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return nil
}

// declare creates the exchange, the queue and its bindings.  All calls are
// idempotent.
func (b Binding) declare(ch *amqp.Channel) error {
	if err := declareExchange(ch, b.Exchange); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(b.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", b.Queue, err)
	}
	for _, key := range b.Keys {
		if err := ch.QueueBind(b.Queue, key, b.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", b.Queue, key, err)
		}
	}
	return nil
}
