package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one support chat message. Conversation is the customer's
// email address.
type ChatMessage struct {
	ID           string    `json:"id"`
	Conversation string    `json:"conversation"`
	SenderEmail  string    `json:"sender_email"`
	SenderRole   string    `json:"sender_role"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
}

// Conversation summarizes one support conversation.
type Conversation struct {
	ID       string
	LastBody string
	LastAt   time.Time
	Messages int
}

// AddChatMessage inserts m, assigning ID and CreatedAt when unset.
func (db *DB) AddChatMessage(ctx context.Context, m *ChatMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, conversation, sender_email, sender_role, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.Conversation, m.SenderEmail, m.SenderRole, m.Body, m.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// ChatMessages returns the latest limit messages of a conversation, oldest first.
func (db *DB) ChatMessages(ctx context.Context, conversation string, limit int) ([]ChatMessage, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, conversation, sender_email, sender_role, body, created_at
		FROM chat_messages WHERE conversation = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, conversation, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []ChatMessage
	for rows.Next() {
		var (
			m       ChatMessage
			created int64
		)
		if err := rows.Scan(&m.ID, &m.Conversation, &m.SenderEmail, &m.SenderRole, &m.Body, &created); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.CreatedAt = time.UnixMilli(created)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Conversations lists support conversations, most recently active first.
func (db *DB) Conversations(ctx context.Context, limit int) ([]Conversation, error) {
	// SQLite fills bare columns from the row that holds MAX(created_at).
	rows, err := db.QueryContext(ctx, `
		SELECT conversation, body, MAX(created_at), COUNT(*)
		FROM chat_messages GROUP BY conversation
		ORDER BY MAX(created_at) DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var (
			c    Conversation
			last int64
		)
		if err := rows.Scan(&c.ID, &c.LastBody, &last, &c.Messages); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.LastAt = time.UnixMilli(last)
		out = append(out, c)
	}
	return out, rows.Err()
}
