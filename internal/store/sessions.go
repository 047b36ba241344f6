package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AuthSession is a signed-in browser or API session. UserID is empty for
// the admin, who has no user row.
type AuthSession struct {
	Token     string
	Email     string
	Role      string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CreateAuthSession inserts s. CreatedAt defaults to now.
func (db *DB) CreateAuthSession(ctx context.Context, s *AuthSession) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	var userID any
	if s.UserID != "" {
		userID = s.UserID
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO auth_sessions (token, email, role, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.Token, s.Email, s.Role, userID, s.CreatedAt.UnixMilli(), s.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert auth session: %w", err)
	}
	return nil
}

// GetAuthSession returns the session for token if it has not expired at now.
// It returns (nil, nil) for unknown or expired tokens.
func (db *DB) GetAuthSession(ctx context.Context, token string, now time.Time) (*AuthSession, error) {
	var (
		s                  AuthSession
		userID             sql.NullString
		created, expiresAt int64
	)
	err := db.QueryRowContext(ctx, `
		SELECT token, email, role, user_id, created_at, expires_at
		FROM auth_sessions WHERE token = ? AND expires_at > ?
	`, token, now.UnixMilli()).Scan(&s.Token, &s.Email, &s.Role, &userID, &created, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get auth session: %w", err)
	}
	s.UserID = userID.String
	s.CreatedAt = time.UnixMilli(created)
	s.ExpiresAt = time.UnixMilli(expiresAt)
	return &s, nil
}

// DeleteAuthSession removes a session. Unknown tokens are not an error.
func (db *DB) DeleteAuthSession(ctx context.Context, token string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete auth session: %w", err)
	}
	return nil
}

// DeleteExpiredAuthSessions removes sessions that expired at or before now
// and returns how many were removed.
func (db *DB) DeleteExpiredAuthSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete expired auth sessions: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
