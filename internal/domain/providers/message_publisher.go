package providers

import (
	"context"

	"github.com/toolshed/marketplace/internal/domain/entities"
)

// MessagePublisher pushes a freshly created message to live connections.
// Implementations are best effort: a recipient without a live connection
// simply never sees the event.
type MessagePublisher interface {
	Publish(ctx context.Context, message *entities.UserMessage) error
}
