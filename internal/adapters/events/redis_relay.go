package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/providers"
	redisclient "github.com/toolshed/marketplace/internal/infrastructure/clients/redis"
)

// DefaultRelayChannel is the Redis channel used when none is configured
const DefaultRelayChannel = "messages:created"

// RedisRelay publishes messages through Redis Pub/Sub so that every server
// instance delivers them to its own local bus. Delivery stays at-most-once.
type RedisRelay struct {
	client  *redisclient.Client
	channel string
	local   *MessageBus

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

var _ providers.MessagePublisher = (*RedisRelay)(nil)

// NewRedisRelay creates a relay feeding local
func NewRedisRelay(client *redisclient.Client, channel string, local *MessageBus) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		local:   local,
	}
}

// Publish sends message to every instance, this one included
func (r *RedisRelay) Publish(ctx context.Context, message *entities.UserMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := r.client.Client().Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Start subscribes to the relay channel and forwards received messages into
// the local bus until ctx is cancelled or Close is called.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pubsub != nil {
		return fmt.Errorf("relay already started")
	}

	pubsub := r.client.Client().Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	r.pubsub = pubsub
	r.done = make(chan struct{})
	go r.receiveMessages(ctx, pubsub, r.done)

	log.Info().Str("channel", r.channel).Msg("message relay subscribed")
	return nil
}

func (r *RedisRelay) receiveMessages(ctx context.Context, pubsub *redis.PubSub, done chan struct{}) {
	defer close(done)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var message entities.UserMessage
			if err := json.Unmarshal([]byte(msg.Payload), &message); err != nil {
				log.Warn().Err(err).Str("channel", r.channel).Msg("dropping undecodable relay message")
				continue
			}
			_ = r.local.Publish(ctx, &message)
		}
	}
}

// Close stops the receiver and waits for it to exit
func (r *RedisRelay) Close() error {
	r.mu.Lock()
	pubsub, done := r.pubsub, r.done
	r.pubsub, r.done = nil, nil
	r.mu.Unlock()

	if pubsub == nil {
		return nil
	}

	err := pubsub.Close()
	<-done
	if err != nil {
		return fmt.Errorf("failed to close relay subscription: %w", err)
	}
	return nil
}
