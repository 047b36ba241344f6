package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sfaret/stipslite/internal/store"
)

const (
	defaultTTL    = 24 * time.Hour
	sweepInterval = time.Hour
)

// Principal is the signed-in identity attached to a request.
type Principal struct {
	Email  string `json:"email"`
	Role   string `json:"role"`
	UserID string `json:"user_id,omitempty"`
	Token  string `json:"-"`
}

// IsAdmin reports whether p is the admin.
func (p *Principal) IsAdmin() bool { return p != nil && p.Role == RoleAdmin }

// Event kinds.
const (
	EventLogin  = "login"
	EventLogout = "logout"
)

// Event describes a session change.
type Event struct {
	Kind      string
	Principal Principal
}

// Sessions issues and resolves cookie sessions.
type Sessions struct {
	db  *store.DB
	ttl time.Duration
	now func() time.Time

	mu   sync.RWMutex
	subs []func(context.Context, Event)

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewSessions returns a session manager. A non-positive ttl uses 24h.
func NewSessions(db *store.DB, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Sessions{
		db:     db,
		ttl:    ttl,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// TTL returns the session lifetime.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Subscribe registers fn to run after every login and logout.
func (s *Sessions) Subscribe(fn func(context.Context, Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Sessions) notify(ctx context.Context, ev Event) {
	s.mu.RLock()
	subs := s.subs
	s.mu.RUnlock()
	for _, fn := range subs {
		fn(ctx, ev)
	}
}

// Create starts a session for p and returns it with its token set.
func (s *Sessions) Create(ctx context.Context, p Principal) (*Principal, time.Time, error) {
	token, err := newToken()
	if err != nil {
		return nil, time.Time{}, err
	}
	now := s.now()
	sess := &store.AuthSession{
		Token:     token,
		Email:     p.Email,
		Role:      p.Role,
		UserID:    p.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.db.CreateAuthSession(ctx, sess); err != nil {
		return nil, time.Time{}, err
	}
	p.Token = token
	s.notify(ctx, Event{Kind: EventLogin, Principal: p})
	return &p, sess.ExpiresAt, nil
}

// Resolve returns the principal for token, or (nil, nil) when the token is
// unknown or expired.
func (s *Sessions) Resolve(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, nil
	}
	sess, err := s.db.GetAuthSession(ctx, token, s.now())
	if err != nil || sess == nil {
		return nil, err
	}
	return &Principal{Email: sess.Email, Role: sess.Role, UserID: sess.UserID, Token: sess.Token}, nil
}

// Destroy ends the session for token. Unknown tokens are ignored.
func (s *Sessions) Destroy(ctx context.Context, token string) error {
	p, err := s.Resolve(ctx, token)
	if err != nil {
		return err
	}
	if err := s.db.DeleteAuthSession(ctx, token); err != nil {
		return err
	}
	if p != nil {
		s.notify(ctx, Event{Kind: EventLogout, Principal: *p})
	}
	return nil
}

// Sweep deletes expired sessions.
func (s *Sessions) Sweep(ctx context.Context) (int64, error) {
	return s.db.DeleteExpiredAuthSessions(ctx, s.now())
}

// StartSweeper sweeps expired sessions now and then every hour until Stop.
func (s *Sessions) StartSweeper() {
	s.startSweeper(sweepInterval)
}

func (s *Sessions) startSweeper(interval time.Duration) {
	s.sweepOnce()

	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweepOnce()
			case <-s.stopCh:
				return
			}
		}
	}()
}

func (s *Sessions) sweepOnce() {
	if n, err := s.Sweep(context.Background()); err != nil {
		log.Error().Err(err).Msg("session sweep")
	} else if n > 0 {
		log.Info().Int64("removed", n).Msg("expired sessions swept")
	}
}

// Stop shuts down the sweeper and waits for it to exit.
func (s *Sessions) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.done != nil {
		<-s.done
	}
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
