package store

import (
	"context"
	"testing"
	"time"
)

func TestChatMessagesOldestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	bodies := []string{"hello", "is anyone there?", "hi, how can we help?"}
	for i, body := range bodies {
		m := &ChatMessage{Conversation: "kofi@uni.edu", SenderEmail: "kofi@uni.edu", SenderRole: "student", Body: body, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := db.AddChatMessage(ctx, m); err != nil {
			t.Fatalf("AddChatMessage: %v", err)
		}
		if m.ID == "" {
			t.Fatal("AddChatMessage did not assign an ID")
		}
	}

	msgs, err := db.ChatMessages(ctx, "kofi@uni.edu", 2)
	if err != nil {
		t.Fatalf("ChatMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("ChatMessages = %d, want 2", len(msgs))
	}
	if msgs[0].Body != "is anyone there?" || msgs[1].Body != "hi, how can we help?" {
		t.Errorf("ChatMessages = %q, %q; want the latest two oldest first", msgs[0].Body, msgs[1].Body)
	}
}

func TestConversations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	add := func(conv, body string, at time.Duration) {
		t.Helper()
		if err := db.AddChatMessage(ctx, &ChatMessage{Conversation: conv, SenderEmail: conv, SenderRole: "student", Body: body, CreatedAt: base.Add(at)}); err != nil {
			t.Fatalf("AddChatMessage: %v", err)
		}
	}
	add("a@uni.edu", "first", 0)
	add("b@uni.edu", "other", time.Second)
	add("a@uni.edu", "latest", 2*time.Second)

	convs, err := db.Conversations(ctx, 10)
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("Conversations = %d, want 2", len(convs))
	}
	if convs[0].ID != "a@uni.edu" || convs[0].LastBody != "latest" || convs[0].Messages != 2 {
		t.Errorf("Conversations[0] = %+v", convs[0])
	}
	if convs[1].ID != "b@uni.edu" {
		t.Errorf("Conversations[1] = %+v", convs[1])
	}
}
