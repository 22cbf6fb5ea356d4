package entities

import "time"

// UserMessage is a direct message between two users. Messages are immutable
// once created and ordered by CreatedAt.
type UserMessage struct {
	ID          string    `json:"id" db:"id"`
	// Seq is assigned on insert and breaks created_at ties in insertion order
	Seq         int64     `json:"seq" db:"seq"`
	SenderID    string    `json:"sender_id" db:"sender_id"`
	RecipientID string    `json:"recipient_id" db:"recipient_id"`
	Content     string    `json:"content" db:"content"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// CounterpartyOf returns the participant that is not userID. For a
// self-addressed message it returns userID.
func (m *UserMessage) CounterpartyOf(userID string) string {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

// Conversation is the thread between a user and one counterparty, oldest
// message first.
type Conversation struct {
	CounterpartyID string         `json:"counterparty_id"`
	SelfThread     bool           `json:"self_thread,omitempty"`
	Messages       []*UserMessage `json:"messages"`
	LastMessageAt  time.Time      `json:"last_message_at"`
}
