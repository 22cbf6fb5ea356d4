package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/toolshed/marketplace/internal/adapters/events"
	"github.com/toolshed/marketplace/internal/application/services"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/mocks"
	apperrors "github.com/toolshed/marketplace/pkg/errors"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func msg(id, from, to string, minute int) *entities.UserMessage {
	return &entities.UserMessage{
		ID:          id,
		SenderID:    from,
		RecipientID: to,
		Content:     id,
		CreatedAt:   epoch.Add(time.Duration(minute) * time.Minute),
	}
}

func TestConversationService_ThreadsFor(t *testing.T) {
	ctx := context.Background()

	t.Run("partitions by counterparty, newest thread first", func(t *testing.T) {
		messages := new(mocks.MessageRepository)
		service := services.NewConversationService(messages, new(mocks.UserRepository), nil)

		all := []*entities.UserMessage{
			msg("m1", "a", "b", 1),
			msg("m2", "c", "a", 2),
			msg("m3", "b", "a", 3),
			msg("m4", "a", "c", 4),
			msg("m5", "a", "b", 5),
		}
		messages.On("ListForUser", mock.Anything, "a").Return(all, nil)

		threads, err := service.ThreadsFor(ctx, "a")
		require.NoError(t, err)
		require.Len(t, threads, 2)

		assert.Equal(t, "b", threads[0].CounterpartyID)
		assert.Equal(t, []*entities.UserMessage{all[0], all[2], all[4]}, threads[0].Messages)
		assert.Equal(t, epoch.Add(5*time.Minute), threads[0].LastMessageAt)

		assert.Equal(t, "c", threads[1].CounterpartyID)
		assert.Equal(t, []*entities.UserMessage{all[1], all[3]}, threads[1].Messages)

		total := 0
		for _, th := range threads {
			assert.NotEqual(t, "a", th.CounterpartyID)
			assert.False(t, th.SelfThread)
			total += len(th.Messages)
		}
		assert.Equal(t, len(all), total)
	})

	t.Run("legacy self messages form one degenerate thread", func(t *testing.T) {
		messages := new(mocks.MessageRepository)
		service := services.NewConversationService(messages, new(mocks.UserRepository), nil)

		messages.On("ListForUser", mock.Anything, "a").Return([]*entities.UserMessage{
			msg("m1", "a", "a", 1),
			msg("m2", "a", "b", 2),
			msg("m3", "a", "a", 3),
		}, nil)

		threads, err := service.ThreadsFor(ctx, "a")
		require.NoError(t, err)
		require.Len(t, threads, 2)
		assert.True(t, threads[0].SelfThread)
		assert.Equal(t, "a", threads[0].CounterpartyID)
		assert.Len(t, threads[0].Messages, 2)
	})

	t.Run("no messages", func(t *testing.T) {
		messages := new(mocks.MessageRepository)
		service := services.NewConversationService(messages, new(mocks.UserRepository), nil)
		messages.On("ListForUser", mock.Anything, "a").Return([]*entities.UserMessage{}, nil)

		threads, err := service.ThreadsFor(ctx, "a")
		require.NoError(t, err)
		assert.NotNil(t, threads)
		assert.Empty(t, threads)
	})
}

func TestConversationService_Thread(t *testing.T) {
	ctx := context.Background()

	t.Run("thread matches the grouped partition", func(t *testing.T) {
		messages := new(mocks.MessageRepository)
		users := new(mocks.UserRepository)
		service := services.NewConversationService(messages, users, nil)

		between := []*entities.UserMessage{msg("m1", "a", "b", 1), msg("m3", "b", "a", 3)}
		users.On("GetByID", mock.Anything, "b").Return(&entities.User{ID: "b"}, nil)
		messages.On("ListBetween", mock.Anything, "a", "b").Return(between, nil)
		messages.On("ListForUser", mock.Anything, "a").Return([]*entities.UserMessage{
			between[0], msg("m2", "c", "a", 2), between[1],
		}, nil)

		thread, err := service.Thread(ctx, "a", "b")
		require.NoError(t, err)
		threads, err := service.ThreadsFor(ctx, "a")
		require.NoError(t, err)

		for _, th := range threads {
			if th.CounterpartyID == "b" {
				assert.Equal(t, th.Messages, thread)
			}
		}
	})

	t.Run("unknown counterparty", func(t *testing.T) {
		users := new(mocks.UserRepository)
		service := services.NewConversationService(new(mocks.MessageRepository), users, nil)
		users.On("GetByID", mock.Anything, "ghost").Return(nil, apperrors.NewNotFoundError("user not found"))

		_, err := service.Thread(ctx, "a", "ghost")
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotFound))
	})
}

func TestConversationService_SendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("persists then publishes once to the live recipient", func(t *testing.T) {
		messages := new(mocks.MessageRepository)
		users := new(mocks.UserRepository)
		bus := events.NewMessageBus()
		service := services.NewConversationService(messages, users, bus)

		var toB, toC []*entities.UserMessage
		bus.Subscribe("b", func(m *entities.UserMessage) { toB = append(toB, m) })
		bus.Subscribe("c", func(m *entities.UserMessage) { toC = append(toC, m) })

		users.On("GetByID", mock.Anything, "b").Return(&entities.User{ID: "b"}, nil)
		messages.On("Create", mock.Anything, mock.MatchedBy(func(m *entities.UserMessage) bool {
			return m.SenderID == "a" && m.RecipientID == "b" && m.Content == "is the drill free?"
		})).Return(nil).Once()

		sent, err := service.SendMessage(ctx, "a", "b", "  is the drill free?  ")
		require.NoError(t, err)
		assert.NotEmpty(t, sent.ID)

		require.Len(t, toB, 1)
		assert.Equal(t, "b", toB[0].RecipientID)
		assert.Same(t, sent, toB[0])
		assert.Empty(t, toC)
		messages.AssertExpectations(t)
	})

	t.Run("persistence failure publishes nothing", func(t *testing.T) {
		messages := new(mocks.MessageRepository)
		users := new(mocks.UserRepository)
		publisher := new(mocks.MessagePublisher)
		service := services.NewConversationService(messages, users, publisher)

		users.On("GetByID", mock.Anything, "b").Return(&entities.User{ID: "b"}, nil)
		messages.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

		_, err := service.SendMessage(ctx, "a", "b", "hello")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeInternal))
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("publish failure does not fail the send", func(t *testing.T) {
		messages := new(mocks.MessageRepository)
		users := new(mocks.UserRepository)
		publisher := new(mocks.MessagePublisher)
		service := services.NewConversationService(messages, users, publisher)

		users.On("GetByID", mock.Anything, "b").Return(&entities.User{ID: "b"}, nil)
		messages.On("Create", mock.Anything, mock.Anything).Return(nil)
		publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()

		_, err := service.SendMessage(ctx, "a", "b", "hello")
		require.NoError(t, err)
		publisher.AssertExpectations(t)
	})

	t.Run("validation", func(t *testing.T) {
		users := new(mocks.UserRepository)
		service := services.NewConversationService(new(mocks.MessageRepository), users, nil)
		users.On("GetByID", mock.Anything, "ghost").Return(nil, apperrors.NewNotFoundError("user not found"))

		_, err := service.SendMessage(ctx, "a", "b", "   ")
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))

		_, err = service.SendMessage(ctx, "a", "b", strings.Repeat("x", services.MaxMessageLength+1))
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))

		_, err = service.SendMessage(ctx, "a", "a", "note to self")
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))

		_, err = service.SendMessage(ctx, "a", "ghost", "hello")
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotFound))
	})
}
