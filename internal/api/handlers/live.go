package handlers

import (
	"github.com/rs/zerolog/log"
	"github.com/toolshed/marketplace/internal/adapters/events"
	"github.com/toolshed/marketplace/internal/domain/entities"
)

const liveBufferSize = 32

// LiveSubscriber registers per-user handlers for newly created messages
type LiveSubscriber interface {
	Subscribe(userID string, handler events.MessageHandler) *events.Subscription
}

// openLiveFeed subscribes userID and returns a buffered feed of its messages.
// Sends never block the publisher; a full buffer drops the message.
func openLiveFeed(bus LiveSubscriber, userID, transport string) (<-chan *entities.UserMessage, *events.Subscription) {
	feed := make(chan *entities.UserMessage, liveBufferSize)
	sub := bus.Subscribe(userID, func(message *entities.UserMessage) {
		select {
		case feed <- message:
		default:
			log.Warn().
				Str("user_id", userID).
				Str("message_id", message.ID).
				Str("transport", transport).
				Msg("live feed full, dropping message")
		}
	})
	return feed, sub
}
