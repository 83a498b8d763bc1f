package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payroll/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

// ErrTransportClosed is returned by Transport.Receive when the transport shuts down.
var ErrTransportClosed = errors.New("transport closed")

// Transport carries messages between processes.
type Transport interface {
	// Send hands a message to the bus.
	Send(ctx context.Context, msg Message) error

	// Receive delivers every message from the bus, including those sent by this
	// process, until ctx is done or the transport fails. Messages from one sender
	// arrive in send order.
	Receive(ctx context.Context, deliver func(Message)) error

	Close() error
}

// DefaultOutbox is the capacity of the relay send queue used when none is configured.
const DefaultOutbox = 256

type RelayOptions struct {
	Outbox int
}

// RelayHub publishes through a Transport and fans received messages out to a local
// Broker, so subscribers on every process observe every change.
//
// Publish only enqueues; a single sender drains the queue in order. A full queue drops
// the event.
type RelayHub struct {
	local     *Broker
	transport Transport
	outbox    chan Message
}

// NewRelayHub creates a relay. Run must be called for events to flow.
func NewRelayHub(local *Broker, transport Transport, opts RelayOptions) *RelayHub {
	size := opts.Outbox
	if size <= 0 {
		size = DefaultOutbox
	}

	return &RelayHub{
		local:     local,
		transport: transport,
		outbox:    make(chan Message, size),
	}
}

func (h *RelayHub) Publish(ctx context.Context, topic, payload string) {
	select {
	case h.outbox <- Message{Topic: topic, Payload: payload}:
	default:
		telemetry.GetMetrics().EventsDroppedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
		log.Warn().
			Str("topic", topic).
			Str("payload", payload).
			Msg("Relay outbox full, dropping event")
	}
}

func (h *RelayHub) Subscribe(topics ...string) (<-chan Message, func()) {
	return h.local.Subscribe(topics...)
}

// Run sends queued events and forwards received ones until ctx is done.
func (h *RelayHub) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg := <-h.outbox:
				if err := h.transport.Send(ctx, msg); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					telemetry.GetMetrics().EventsDroppedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", msg.Topic)))
					log.Warn().Err(err).
						Str("topic", msg.Topic).
						Str("payload", msg.Payload).
						Msg("Failed to relay event")
				}
			}
		}
	})

	g.Go(func() error {
		err := h.transport.Receive(ctx, func(msg Message) {
			if !ValidTopic(msg.Topic) {
				log.Warn().Str("topic", msg.Topic).Msg("Ignoring relayed event with unknown topic")
				return
			}
			h.local.Publish(ctx, msg.Topic, msg.Payload)
		})
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("relay receive failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
