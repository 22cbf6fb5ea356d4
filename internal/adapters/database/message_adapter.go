package database

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/repositories"
	"github.com/toolshed/marketplace/internal/infrastructure/clients/postgres"
	apperrors "github.com/toolshed/marketplace/pkg/errors"
)

// pgForeignKeyViolation is the SQLSTATE for a foreign key violation
const pgForeignKeyViolation = "23503"

// MessageAdapter implements the MessageRepository interface
type MessageAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewMessageAdapter creates a new message adapter
func NewMessageAdapter(client *postgres.Client) repositories.MessageRepository {
	return &MessageAdapter{
		client: client,
		db:     client.Builder(),
	}
}

// Create appends a message and sets its insertion sequence
func (a *MessageAdapter) Create(ctx context.Context, message *entities.UserMessage) error {
	query, args, err := a.db.Insert("user_messages").Prepared(true).Rows(goqu.Record{
		"id":           message.ID,
		"sender_id":    message.SenderID,
		"recipient_id": message.RecipientID,
		"content":      message.Content,
		"created_at":   message.CreatedAt,
	}).Returning("seq").ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&message.Seq); err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.NewNotFoundError("message participant not found")
		}
		return apperrors.NewInternalError("failed to create message", err)
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgForeignKeyViolation
}

// ListForUser returns every message the user sent or received, oldest first
func (a *MessageAdapter) ListForUser(ctx context.Context, userID string) ([]*entities.UserMessage, error) {
	return a.list(ctx, goqu.Or(
		goqu.Ex{"sender_id": userID},
		goqu.Ex{"recipient_id": userID},
	))
}

// ListBetween returns both directions of one thread, oldest first
func (a *MessageAdapter) ListBetween(ctx context.Context, userID, counterpartyID string) ([]*entities.UserMessage, error) {
	return a.list(ctx, goqu.Or(
		goqu.Ex{"sender_id": userID, "recipient_id": counterpartyID},
		goqu.Ex{"sender_id": counterpartyID, "recipient_id": userID},
	))
}

func (a *MessageAdapter) list(ctx context.Context, filter exp.Expression) ([]*entities.UserMessage, error) {
	query, args, err := a.db.Select("id", "seq", "sender_id", "recipient_id", "content", "created_at").
		From("user_messages").
		Where(filter).
		Order(goqu.C("created_at").Asc(), goqu.C("seq").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list messages", err)
	}
	defer rows.Close()

	messages := []*entities.UserMessage{}
	for rows.Next() {
		m := &entities.UserMessage{}
		if err := rows.Scan(&m.ID, &m.Seq, &m.SenderID, &m.RecipientID, &m.Content, &m.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan message", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating messages", err)
	}

	return messages, nil
}
