package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultRedisChannel is the pub/sub channel used when none is configured.
const DefaultRedisChannel = "payroll:events"

// RedisTransport relays messages over a redis pub/sub channel.
// The subscription is established before NewRedisTransport returns.
type RedisTransport struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
}

// NewRedisTransport subscribes to channel and waits for the confirmation.
func NewRedisTransport(ctx context.Context, client *redis.Client, channel string) (*RedisTransport, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if channel == "" {
		channel = DefaultRedisChannel
	}

	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	log.Info().Str("channel", channel).Msg("Subscribed to redis channel")

	return &RedisTransport{
		client:  client,
		channel: channel,
		pubsub:  pubsub,
	}, nil
}

func (t *RedisTransport) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	return t.client.Publish(ctx, t.channel, payload).Err()
}

func (t *RedisTransport) Receive(ctx context.Context, deliver func(Message)) error {
	ch := t.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-ch:
			if !ok {
				return ErrTransportClosed
			}

			var msg Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				log.Warn().Err(err).
					Str("channel", t.channel).
					Str("payload", raw.Payload).
					Msg("Failed to decode relayed event")
				continue
			}

			deliver(msg)
		}
	}
}

func (t *RedisTransport) Close() error {
	return t.pubsub.Close()
}
