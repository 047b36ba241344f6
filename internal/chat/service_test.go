package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfaret/stipslite/internal/auth"
	"github.com/sfaret/stipslite/internal/store"
)

func newService(t *testing.T) (*Service, func()) {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	h := NewHub(8)
	stop := runHub(t, h)
	return NewService(db, h), func() {
		stop()
		db.Close()
	}
}

func TestValidateBody(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"trimmed", "  hi there \n", "hi there", false},
		{"empty", "   ", "", true},
		{"max length", strings.Repeat("é", MaxBodyLen), strings.Repeat("é", MaxBodyLen), false},
		{"too long", strings.Repeat("a", MaxBodyLen+1), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateBody(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSendPersistsAndPublishes(t *testing.T) {
	svc, done := newService(t)
	defer done()
	ctx := context.Background()

	admin := svc.Hub().Subscribe("", true)
	student := &auth.Principal{Email: "kofi@uni.edu", Role: auth.RoleStudent}

	// Customers always post into their own conversation.
	m, err := svc.Send(ctx, student, "someone-else@uni.edu", "  my print job is stuck ")
	require.NoError(t, err)
	assert.Equal(t, "kofi@uni.edu", m.Conversation)
	assert.Equal(t, "my print job is stuck", m.Body)

	got, ok := recv(t, admin)
	require.True(t, ok)
	assert.Equal(t, m.ID, got.ID)

	reply, err := svc.Send(ctx, &auth.Principal{Email: auth.AdminEmail, Role: auth.RoleAdmin}, "kofi@uni.edu", "on it")
	require.NoError(t, err)
	assert.Equal(t, "kofi@uni.edu", reply.Conversation)

	history, err := svc.History(ctx, "kofi@uni.edu", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, auth.RoleAdmin, history[1].SenderRole)

	convs, err := svc.Conversations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 2, convs[0].Messages)
}

func TestSendRejects(t *testing.T) {
	svc, done := newService(t)
	defer done()
	ctx := context.Background()

	_, err := svc.Send(ctx, nil, "kofi@uni.edu", "hi")
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = svc.Send(ctx, &auth.Principal{Email: auth.AdminEmail, Role: auth.RoleAdmin}, "", "hi")
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = svc.Send(ctx, &auth.Principal{Email: "kofi@uni.edu", Role: auth.RoleStudent}, "", "   ")
	assert.ErrorIs(t, err, ErrInvalidMessage)
}
