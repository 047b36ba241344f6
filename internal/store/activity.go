package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MaxActivityDetail caps the stored detail text, in bytes.
const MaxActivityDetail = 2048

// Activity is one entry in the portal activity log.
type Activity struct {
	ID         int64     `json:"id"`
	ActorEmail string    `json:"actor_email"`
	Role       string    `json:"role"`
	Action     string    `json:"action"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AddActivity inserts a, truncating its detail. CreatedAt defaults to now.
func (db *DB) AddActivity(ctx context.Context, a *Activity) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.Detail = truncate(a.Detail, MaxActivityDetail)

	result, err := db.ExecContext(ctx, `
		INSERT INTO activity (actor_email, role, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, a.ActorEmail, a.Role, a.Action, a.Detail, a.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	a.ID, _ = result.LastInsertId()
	return nil
}

// RecentActivity returns the latest activity across all actors, newest first.
func (db *DB) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	return db.queryActivity(ctx, `
		SELECT id, actor_email, role, action, detail, created_at
		FROM activity ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
}

// ActivityFor returns the latest activity of one actor, newest first.
func (db *DB) ActivityFor(ctx context.Context, email string, limit int) ([]Activity, error) {
	return db.queryActivity(ctx, `
		SELECT id, actor_email, role, action, detail, created_at
		FROM activity WHERE actor_email = ? ORDER BY created_at DESC, id DESC LIMIT ?
	`, email, limit)
}

func (db *DB) queryActivity(ctx context.Context, query string, args ...any) ([]Activity, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var (
			a       Activity
			detail  sql.NullString
			created int64
		)
		if err := rows.Scan(&a.ID, &a.ActorEmail, &a.Role, &a.Action, &detail, &created); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Detail = detail.String
		a.CreatedAt = time.UnixMilli(created)
		out = append(out, a)
	}
	return out, rows.Err()
}
