package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// loopbackBus delivers every sent message to all joined transports.
type loopbackBus struct {
	receivers []chan Message
}

type loopbackTransport struct {
	bus   *loopbackBus
	inbox chan Message
}

func (b *loopbackBus) join() *loopbackTransport {
	t := &loopbackTransport{bus: b, inbox: make(chan Message, 16)}
	b.receivers = append(b.receivers, t.inbox)
	return t
}

func (t *loopbackTransport) Send(ctx context.Context, msg Message) error {
	for _, r := range t.bus.receivers {
		r <- msg
	}
	return nil
}

func (t *loopbackTransport) Receive(ctx context.Context, deliver func(Message)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-t.inbox:
			deliver(msg)
		}
	}
}

func (t *loopbackTransport) Close() error { return nil }

type failingTransport struct{}

func (failingTransport) Send(context.Context, Message) error { return errors.New("send failed") }

func (failingTransport) Receive(ctx context.Context, _ func(Message)) error {
	<-ctx.Done()
	return nil
}

func (failingTransport) Close() error { return nil }

func runRelay(t *testing.T, h *RelayHub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func TestRelayHub_FansOutAcrossProcesses(t *testing.T) {
	bus := &loopbackBus{}
	first := NewRelayHub(NewBroker(BrokerOptions{}), bus.join(), RelayOptions{})
	second := NewRelayHub(NewBroker(BrokerOptions{}), bus.join(), RelayOptions{})

	chFirst, stopFirst := first.Subscribe(TopicNewEmployee)
	defer stopFirst()
	chSecond, stopSecond := second.Subscribe(TopicNewEmployee)
	defer stopSecond()

	runRelay(t, first)
	runRelay(t, second)

	first.Publish(context.Background(), TopicNewEmployee, "/api/employees/1")

	require.Equal(t, "/api/employees/1", receive(t, chFirst).Payload)
	require.Equal(t, "/api/employees/1", receive(t, chSecond).Payload)
}

func TestRelayHub_IgnoresUnknownTopics(t *testing.T) {
	bus := &loopbackBus{}
	h := NewRelayHub(NewBroker(BrokerOptions{}), bus.join(), RelayOptions{})

	ch, stop := h.Subscribe()
	defer stop()

	runRelay(t, h)

	h.Publish(context.Background(), "/topic/bogus", "x")
	h.Publish(context.Background(), TopicDeleteEmployee, "/api/employees/2")

	require.Equal(t, TopicDeleteEmployee, receive(t, ch).Topic)
}

func TestRelayHub_PublishNeverBlocks(t *testing.T) {
	h := NewRelayHub(NewBroker(BrokerOptions{}), failingTransport{}, RelayOptions{Outbox: 1})

	done := make(chan struct{})
	go func() {
		defer close(done)
		// not running: the outbox fills and the rest are dropped
		for range 10 {
			h.Publish(context.Background(), TopicNewEmployee, "/api/employees/1")
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked")
	}

	runRelay(t, h)
}

func TestRelayHub_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()

	t1, err := NewRedisTransport(ctx, client, "payroll:test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = t1.Close() })
	t2, err := NewRedisTransport(ctx, client, "payroll:test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = t2.Close() })

	first := NewRelayHub(NewBroker(BrokerOptions{}), t1, RelayOptions{})
	second := NewRelayHub(NewBroker(BrokerOptions{}), t2, RelayOptions{})

	chFirst, stopFirst := first.Subscribe(TopicUpdateEmployee)
	defer stopFirst()
	chSecond, stopSecond := second.Subscribe(TopicUpdateEmployee)
	defer stopSecond()

	runRelay(t, first)
	runRelay(t, second)

	first.Publish(ctx, TopicUpdateEmployee, "/api/employees/1")
	first.Publish(ctx, TopicUpdateEmployee, "/api/employees/2")

	require.Equal(t, "/api/employees/1", receive(t, chFirst).Payload)
	require.Equal(t, "/api/employees/2", receive(t, chFirst).Payload)
	require.Equal(t, "/api/employees/1", receive(t, chSecond).Payload)
	require.Equal(t, "/api/employees/2", receive(t, chSecond).Payload)
}

func TestRedisTransport_RequiresClient(t *testing.T) {
	_, err := NewRedisTransport(context.Background(), nil, "x")
	require.Error(t, err)
}
