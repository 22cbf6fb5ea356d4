package services

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/providers"
	"github.com/toolshed/marketplace/internal/domain/repositories"
	"github.com/toolshed/marketplace/internal/infrastructure/observability"
	apperrors "github.com/toolshed/marketplace/pkg/errors"
)

// MaxMessageLength is the longest message content accepted, in characters
const MaxMessageLength = 5000

// ConversationService groups direct messages into threads and sends new ones
type ConversationService struct {
	messages  repositories.MessageRepository
	users     repositories.UserRepository
	publisher providers.MessagePublisher
}

// NewConversationService creates a new conversation service
func NewConversationService(
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	publisher providers.MessagePublisher,
) *ConversationService {
	return &ConversationService{
		messages:  messages,
		users:     users,
		publisher: publisher,
	}
}

// ThreadsFor partitions every message involving userID by counterparty.
// Messages inside a thread are oldest first; threads are most recent first.
func (s *ConversationService) ThreadsFor(ctx context.Context, userID string) ([]entities.Conversation, error) {
	messages, err := s.messages.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return groupConversations(userID, messages), nil
}

func groupConversations(userID string, messages []*entities.UserMessage) []entities.Conversation {
	index := make(map[string]int)
	conversations := []entities.Conversation{}

	for _, m := range messages {
		counterparty := m.CounterpartyOf(userID)
		i, ok := index[counterparty]
		if !ok {
			i = len(conversations)
			index[counterparty] = i
			conversations = append(conversations, entities.Conversation{
				CounterpartyID: counterparty,
				SelfThread:     counterparty == userID,
			})
		}
		c := &conversations[i]
		c.Messages = append(c.Messages, m)
		if m.CreatedAt.After(c.LastMessageAt) {
			c.LastMessageAt = m.CreatedAt
		}
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastMessageAt.After(conversations[j].LastMessageAt)
	})
	return conversations
}

// Thread returns the messages between userID and counterpartyID in both
// directions, oldest first.
func (s *ConversationService) Thread(ctx context.Context, userID, counterpartyID string) ([]*entities.UserMessage, error) {
	if _, err := s.users.GetByID(ctx, counterpartyID); err != nil {
		return nil, err
	}
	return s.messages.ListBetween(ctx, userID, counterpartyID)
}

// SendMessage persists a message and then publishes it to live connections.
// Nothing is published when persistence fails.
func (s *ConversationService) SendMessage(ctx context.Context, senderID, recipientID, content string) (*entities.UserMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("message content is required")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, apperrors.NewValidationError("message content is too long")
	}
	if senderID == recipientID {
		return nil, apperrors.NewValidationError("cannot send a message to yourself")
	}
	if _, err := s.users.GetByID(ctx, recipientID); err != nil {
		return nil, err
	}

	message := &entities.UserMessage{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, message); err != nil {
		if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
			return nil, err
		}
		return nil, apperrors.NewInternalError("failed to send message", err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, message); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("message_id", message.ID).
				Msg("live delivery failed")
		}
	}
	return message, nil
}
