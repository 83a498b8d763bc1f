package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// DefaultExchange is the topic exchange used when none is configured.
const DefaultExchange = "payroll.events"

// AMQPTransport relays messages through a RabbitMQ topic exchange. Each process
// consumes from its own exclusive, auto-deleted queue bound to every routing key.
type AMQPTransport struct {
	conn       *amqp.Connection
	exchange   string
	deliveries <-chan amqp.Delivery

	mu sync.Mutex // guards ch for publishing
	ch *amqp.Channel
}

// DialAMQP connects, declares the exchange and starts consuming before returning.
func DialAMQP(url, exchange string) (*AMQPTransport, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial amqp: %w", err)
	}

	t, err := newAMQPTransport(conn, exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return t, nil
}

func newAMQPTransport(conn *amqp.Connection, exchange string) (*AMQPTransport, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "#", exchange, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind queue %s: %w", q.Name, err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume queue %s: %w", q.Name, err)
	}

	log.Info().
		Str("exchange", exchange).
		Str("queue", q.Name).
		Msg("Consuming from amqp exchange")

	return &AMQPTransport{
		conn:       conn,
		exchange:   exchange,
		deliveries: deliveries,
		ch:         ch,
	}, nil
}

func (t *AMQPTransport) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.ch.PublishWithContext(ctx,
		t.exchange,
		routingKey(msg.Topic),
		false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
}

func (t *AMQPTransport) Receive(ctx context.Context, deliver func(Message)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-t.deliveries:
			if !ok {
				return ErrTransportClosed
			}

			var msg Message
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				log.Warn().Err(err).
					Str("exchange", t.exchange).
					Str("routing_key", d.RoutingKey).
					Msg("Failed to decode relayed event")
				continue
			}

			deliver(msg)
		}
	}
}

func (t *AMQPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return errors.Join(t.ch.Close(), t.conn.Close())
}

// routingKey maps "/topic/newEmployee" to "topic.newEmployee".
func routingKey(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}
