package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/providers"
)

// MessageHandler receives messages addressed to the user it was subscribed for.
// Handlers run on the publishing goroutine and must not block.
type MessageHandler func(message *entities.UserMessage)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	userID  string
	handler MessageHandler
	bus     *MessageBus
	closed  atomic.Bool
}

// UserID returns the user the subscription is bound to.
func (s *Subscription) UserID() string {
	return s.userID
}

// Close removes the subscription from its bus. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.Unsubscribe(s)
}

func (s *Subscription) deliver(message *entities.UserMessage) {
	if s.closed.Load() || message.RecipientID != s.userID {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("user_id", s.userID).
				Str("message_id", message.ID).
				Msg("live message handler panicked")
		}
	}()
	s.handler(message)
}

// MessageBus fans newly created messages out to live connections of their
// recipient. One bus is created per server instance.
type MessageBus struct {
	mu   sync.RWMutex
	subs []*Subscription
}

// NewMessageBus creates an empty bus
func NewMessageBus() *MessageBus {
	return &MessageBus{}
}

var _ providers.MessagePublisher = (*MessageBus)(nil)

// Subscribe registers handler for messages whose recipient is userID
func (b *MessageBus) Subscribe(userID string, handler MessageHandler) *Subscription {
	sub := &Subscription{userID: userID, handler: handler, bus: b}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	count := len(b.subs)
	b.mu.Unlock()

	log.Debug().Str("user_id", userID).Int("subscribers", count).Msg("live subscriber added")
	return sub
}

// Unsubscribe removes sub. Unknown or already removed subscriptions are ignored.
func (b *MessageBus) Unsubscribe(sub *Subscription) {
	if sub == nil || sub.closed.Swap(true) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s == sub {
			// copy so snapshots held by in-flight publishes stay intact
			next := make([]*Subscription, 0, len(b.subs)-1)
			next = append(next, b.subs[:i]...)
			b.subs = append(next, b.subs[i+1:]...)
			break
		}
	}
}

// Publish delivers message synchronously to every subscription bound to its
// recipient. A panicking handler does not stop delivery to the others.
func (b *MessageBus) Publish(_ context.Context, message *entities.UserMessage) error {
	if message == nil {
		return nil
	}

	b.mu.RLock()
	snapshot := b.subs
	b.mu.RUnlock()

	for _, sub := range snapshot {
		sub.deliver(message)
	}
	return nil
}

// SubscriberCount returns the number of live subscriptions
func (b *MessageBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
