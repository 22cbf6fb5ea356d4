package repositories

import (
	"context"

	"github.com/toolshed/marketplace/internal/domain/entities"
)

// MessageRepository defines the interface for direct message operations.
// Both list operations return messages oldest first.
type MessageRepository interface {
	Create(ctx context.Context, message *entities.UserMessage) error

	// ListForUser returns every message the user sent or received
	ListForUser(ctx context.Context, userID string) ([]*entities.UserMessage, error)

	// ListBetween returns the messages exchanged by two users in either direction
	ListBetween(ctx context.Context, userID, counterpartyID string) ([]*entities.UserMessage, error)
}
