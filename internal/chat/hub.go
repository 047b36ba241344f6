// Package chat implements the support chat: persisted conversations keyed by
// the customer's email and a hub that fans new messages out to live viewers.
package chat

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/sfaret/stipslite/internal/store"
)

const defaultBuffer = 16

// Subscriber receives messages for one conversation, or for every
// conversation when it belongs to an admin.
type Subscriber struct {
	conversation string
	admin        bool
	ch           chan store.ChatMessage
}

// C returns the delivery channel. It is closed when the subscriber is
// unsubscribed, dropped for falling behind, or the hub stops.
func (s *Subscriber) C() <-chan store.ChatMessage { return s.ch }

func (s *Subscriber) wants(m store.ChatMessage) bool {
	return s.admin || s.conversation == m.Conversation
}

// Hub fans published messages out to subscribers. Run owns all subscriber
// state; the other methods talk to it over channels.
type Hub struct {
	buffer      int
	publish     chan store.ChatMessage
	subscribe   chan *Subscriber
	unsubscribe chan *Subscriber
	done        chan struct{}
}

// NewHub returns a hub whose subscribers buffer up to buffer messages.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		buffer:      buffer,
		publish:     make(chan store.ChatMessage, buffer),
		subscribe:   make(chan *Subscriber),
		unsubscribe: make(chan *Subscriber),
		done:        make(chan struct{}),
	}
}

// Run delivers messages until ctx is done, then closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	subs := make(map[*Subscriber]struct{})
	defer func() {
		for s := range subs {
			close(s.ch)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.subscribe:
			subs[s] = struct{}{}
		case s := <-h.unsubscribe:
			if _, ok := subs[s]; ok {
				delete(subs, s)
				close(s.ch)
			}
		case m := <-h.publish:
			for s := range subs {
				if !s.wants(m) {
					continue
				}
				select {
				case s.ch <- m:
				default:
					// Slow consumer.
					delete(subs, s)
					close(s.ch)
					log.Warn().Str("conversation", s.conversation).Bool("admin", s.admin).Msg("dropped slow chat subscriber")
				}
			}
		}
	}
}

// Subscribe registers a subscriber for conversation, or for all
// conversations when admin is set. After the hub stops, the returned
// subscriber's channel is already closed.
func (h *Hub) Subscribe(conversation string, admin bool) *Subscriber {
	s := &Subscriber{conversation: conversation, admin: admin, ch: make(chan store.ChatMessage, h.buffer)}
	select {
	case h.subscribe <- s:
	case <-h.done:
		close(s.ch)
	}
	return s
}

// Unsubscribe removes s and closes its channel. It is safe to call more
// than once and after the hub stops.
func (h *Hub) Unsubscribe(s *Subscriber) {
	select {
	case h.unsubscribe <- s:
	case <-h.done:
	}
}

// Publish delivers m to matching subscribers. It is a no-op after the hub stops.
func (h *Hub) Publish(m store.ChatMessage) {
	select {
	case h.publish <- m:
	case <-h.done:
	}
}
