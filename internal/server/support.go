package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sfaret/stipslite/internal/auth"
	"github.com/sfaret/stipslite/internal/chat"
	"github.com/sfaret/stipslite/internal/store"
)

const (
	chatHistoryLimit = 50
	wsWriteTimeout   = 10 * time.Second
	// A frame carries one body of at most chat.MaxBodyLen runes plus JSON framing.
	wsReadLimit = 8 << 10
)

func (s *Server) handleSupport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := auth.FromContext(ctx)
	data := map[string]any{"MaxLen": chat.MaxBodyLen}

	conversation := p.Email
	if p.IsAdmin() {
		convs, err := s.chat.Conversations(ctx, adminListLimit)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		data["Conversations"] = convs
		conversation = r.URL.Query().Get("conversation")
		if conversation == "" && len(convs) > 0 {
			conversation = convs[0].ID
		}
	}
	data["Conversation"] = conversation

	var msgs []store.ChatMessage
	if conversation != "" {
		var err error
		msgs, err = s.chat.History(ctx, conversation, chatHistoryLimit)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
	}
	data["Messages"] = msgs

	s.render(w, r, http.StatusOK, "support.html", "Support", data, nil)
}

func (s *Server) handleSupportPost(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	if p.IsAdmin() {
		redirectWith(w, r, "/support", "error", "Pick a conversation to reply to.")
		return
	}
	s.postMessage(w, r, p, p.Email, "/support")
}

func (s *Server) handleSupportReply(w http.ResponseWriter, r *http.Request) {
	conversation, err := url.PathUnescape(chi.URLParam(r, "conversation"))
	if err != nil {
		http.Error(w, "bad conversation", http.StatusBadRequest)
		return
	}
	s.postMessage(w, r, auth.FromContext(r.Context()), conversation, "/support?conversation="+url.QueryEscape(conversation))
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request, p *auth.Principal, conversation, back string) {
	if err := r.ParseForm(); err != nil {
		redirectWith(w, r, back, "error", "Could not read the form.")
		return
	}
	m, err := s.chat.Send(r.Context(), p, conversation, r.PostFormValue("body"))
	if errors.Is(err, chat.ErrInvalidMessage) {
		redirectWith(w, r, back, "error", "Messages must be between 1 and 1000 characters.")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("send support message")
		redirectWith(w, r, back, "error", "Could not send your message.")
		return
	}
	s.recordActivity(r.Context(), p, "support_message", m.Conversation)
	redirectWith(w, r, back, "success", "Message sent.")
}

// handleSupportWS streams new messages to the browser and accepts
// {"body": "...", "conversation": "..."} frames from it. Customers see their
// own conversation; the admin sees every conversation.
func (s *Server) handleSupportWS(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	hub := s.chat.Hub()
	sub := hub.Subscribe(p.Email, p.IsAdmin())

	ctx := context.WithoutCancel(r.Context())
	go func() {
		defer hub.Unsubscribe(sub)
		for {
			var in struct {
				Body         string `json:"body"`
				Conversation string `json:"conversation"`
			}
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			if _, err := s.chat.Send(ctx, p, in.Conversation, in.Body); err != nil {
				log.Debug().Err(err).Str("email", p.Email).Msg("websocket message rejected")
			}
		}
	}()

	for m := range sub.C() {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(m); err != nil {
			return
		}
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
