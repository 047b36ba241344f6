package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sfaret/stipslite/internal/auth"
	"github.com/sfaret/stipslite/internal/store"
)

// MaxBodyLen is the longest accepted message, in characters.
const MaxBodyLen = 1000

var ErrInvalidMessage = errors.New("invalid chat message")

// Service persists support messages and publishes them on the hub.
type Service struct {
	db  *store.DB
	hub *Hub
}

func NewService(db *store.DB, hub *Hub) *Service {
	return &Service{db: db, hub: hub}
}

// Hub returns the service's hub.
func (s *Service) Hub() *Hub { return s.hub }

// ValidateBody trims body and checks its length.
func ValidateBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", fmt.Errorf("%w: message is empty", ErrInvalidMessage)
	}
	if utf8.RuneCountInString(body) > MaxBodyLen {
		return "", fmt.Errorf("%w: message exceeds %d characters", ErrInvalidMessage, MaxBodyLen)
	}
	return body, nil
}

// Send posts body from sender into conversation. Customers may only post
// into their own conversation; the admin may post into any.
func (s *Service) Send(ctx context.Context, sender *auth.Principal, conversation, body string) (*store.ChatMessage, error) {
	if sender == nil {
		return nil, fmt.Errorf("%w: sender required", ErrInvalidMessage)
	}
	if !sender.IsAdmin() {
		conversation = sender.Email
	}
	if conversation == "" {
		return nil, fmt.Errorf("%w: conversation required", ErrInvalidMessage)
	}
	body, err := ValidateBody(body)
	if err != nil {
		return nil, err
	}

	m := &store.ChatMessage{
		Conversation: conversation,
		SenderEmail:  sender.Email,
		SenderRole:   sender.Role,
		Body:         body,
	}
	if err := s.db.AddChatMessage(ctx, m); err != nil {
		return nil, err
	}
	s.hub.Publish(*m)
	return m, nil
}

// History returns the latest messages of a conversation, oldest first.
func (s *Service) History(ctx context.Context, conversation string, limit int) ([]store.ChatMessage, error) {
	return s.db.ChatMessages(ctx, conversation, limit)
}

// Conversations lists conversations, most recently active first.
func (s *Service) Conversations(ctx context.Context, limit int) ([]store.Conversation, error) {
	return s.db.Conversations(ctx, limit)
}
