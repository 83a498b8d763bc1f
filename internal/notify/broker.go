package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payroll/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultBuffer is the per-subscriber channel capacity used when none is configured.
const DefaultBuffer = 64

type BrokerOptions struct {
	Buffer int
}

type subscriber struct {
	ch     chan Message
	topics map[string]struct{}
}

// Broker is the in-process Hub.
//
// Sends happen under the broker lock, so each subscriber observes events in the
// order Publish was called, and a stopped subscriber is never sent to.
type Broker struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscriber
	buffer int
}

// NewBroker creates an empty broker.
func NewBroker(opts BrokerOptions) *Broker {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	return &Broker{
		subs:   make(map[uint64]*subscriber),
		buffer: buffer,
	}
}

func (b *Broker) Subscribe(topics ...string) (<-chan Message, func()) {
	if len(topics) == 0 {
		topics = Topics()
	}

	sub := &subscriber{
		ch:     make(chan Message, b.buffer),
		topics: make(map[string]struct{}, len(topics)),
	}
	for _, topic := range topics {
		sub.topics[topic] = struct{}{}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	telemetry.GetMetrics().ActiveSubscribers.Add(context.Background(), 1)
	log.Debug().Uint64("subscriber", id).Strs("topics", topics).Msg("Subscriber added")

	return sub.ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		s, ok := b.subs[id]
		if !ok {
			return
		}

		delete(b.subs, id)
		close(s.ch)

		telemetry.GetMetrics().ActiveSubscribers.Add(context.Background(), -1)
		log.Debug().Uint64("subscriber", id).Msg("Subscriber removed")
	}
}

func (b *Broker) Publish(ctx context.Context, topic, payload string) {
	msg := Message{Topic: topic, Payload: payload}
	attrs := metric.WithAttributes(attribute.String("topic", topic))

	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for id, sub := range b.subs {
		if _, ok := sub.topics[topic]; !ok {
			continue
		}

		select {
		case sub.ch <- msg:
			delivered++
		default:
			telemetry.GetMetrics().EventsDroppedTotal.Add(ctx, 1, attrs)
			log.Warn().
				Uint64("subscriber", id).
				Str("topic", topic).
				Str("payload", payload).
				Msg("Subscriber buffer full, dropping event")
		}
	}

	telemetry.GetMetrics().EventsPublishedTotal.Add(ctx, 1, attrs)
	log.Debug().
		Str("topic", topic).
		Str("payload", payload).
		Int("delivered", delivered).
		Msg("Published event")
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
