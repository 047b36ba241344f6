package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sfaret/stipslite/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// runHub starts h and returns a func that stops it and waits for Run to return.
func runHub(t *testing.T, h *Hub) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func recv(t *testing.T, s *Subscriber) (store.ChatMessage, bool) {
	t.Helper()
	select {
	case m, ok := <-s.C():
		return m, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return store.ChatMessage{}, false
	}
}

func TestHubFanOut(t *testing.T) {
	h := NewHub(4)
	stop := runHub(t, h)
	defer stop()

	kofi := h.Subscribe("kofi@uni.edu", false)
	ama := h.Subscribe("ama@uni.edu", false)
	admin := h.Subscribe("", true)

	h.Publish(store.ChatMessage{Conversation: "kofi@uni.edu", Body: "hello"})

	m, ok := recv(t, kofi)
	require.True(t, ok)
	assert.Equal(t, "hello", m.Body)

	m, ok = recv(t, admin)
	require.True(t, ok)
	assert.Equal(t, "kofi@uni.edu", m.Conversation)

	assert.Empty(t, ama.C(), "other conversations receive nothing")
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := NewHub(1)
	stop := runHub(t, h)
	defer stop()

	slow := h.Subscribe("kofi@uni.edu", false)
	admin := h.Subscribe("", true)

	// Draining admin after each publish guarantees the hub finished
	// delivering that message to every subscriber.
	for _, body := range []string{"one", "two"} {
		h.Publish(store.ChatMessage{Conversation: "kofi@uni.edu", Body: body})
		m, ok := recv(t, admin)
		require.True(t, ok)
		require.Equal(t, body, m.Body)
	}

	m, ok := recv(t, slow)
	require.True(t, ok)
	assert.Equal(t, "one", m.Body)

	_, ok = recv(t, slow)
	assert.False(t, ok, "overflowing subscriber is closed")

	// Unsubscribing a dropped subscriber is harmless.
	h.Unsubscribe(slow)
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub(4)
	stop := runHub(t, h)
	defer stop()

	s := h.Subscribe("kofi@uni.edu", false)
	h.Unsubscribe(s)
	_, ok := recv(t, s)
	assert.False(t, ok)
	h.Unsubscribe(s)
}

func TestHubStopClosesSubscribers(t *testing.T) {
	h := NewHub(4)
	stop := runHub(t, h)

	a := h.Subscribe("kofi@uni.edu", false)
	b := h.Subscribe("", true)
	stop()

	_, ok := recv(t, a)
	assert.False(t, ok)
	_, ok = recv(t, b)
	assert.False(t, ok)

	late := h.Subscribe("ama@uni.edu", false)
	_, ok = recv(t, late)
	assert.False(t, ok, "subscribing after stop yields a closed channel")

	h.Publish(store.ChatMessage{Conversation: "ama@uni.edu", Body: "ignored"})
	h.Unsubscribe(late)
}
