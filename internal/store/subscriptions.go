package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Subscription links a user to a catalog plan.
type Subscription struct {
	ID          int64
	UserID      string
	PlanID      string
	Status      string
	CreatedAt   time.Time
	CancelledAt *time.Time
}

// Subscribe makes planID the user's active plan, cancelling any previous one.
func (db *DB) Subscribe(ctx context.Context, userID, planID string) (*Subscription, error) {
	now := time.Now()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin subscribe: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE subscriptions SET status = 'cancelled', cancelled_at = ?
		WHERE user_id = ? AND status = 'active'
	`, now.UnixMilli(), userID); err != nil {
		return nil, fmt.Errorf("cancel previous subscription: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, plan_id, status, created_at)
		VALUES (?, ?, 'active', ?)
	`, userID, planID, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	id, _ := result.LastInsertId()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit subscribe: %w", err)
	}
	return &Subscription{
		ID:        id,
		UserID:    userID,
		PlanID:    planID,
		Status:    "active",
		CreatedAt: time.UnixMilli(now.UnixMilli()),
	}, nil
}

// ActiveSubscription returns the user's active subscription, or (nil, nil).
func (db *DB) ActiveSubscription(ctx context.Context, userID string) (*Subscription, error) {
	var (
		s       Subscription
		created int64
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, user_id, plan_id, status, created_at
		FROM subscriptions WHERE user_id = ? AND status = 'active'
	`, userID).Scan(&s.ID, &s.UserID, &s.PlanID, &s.Status, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active subscription: %w", err)
	}
	s.CreatedAt = time.UnixMilli(created)
	return &s, nil
}

// CancelSubscription cancels the user's active subscription. It returns
// ErrNotFound when there is none.
func (db *DB) CancelSubscription(ctx context.Context, userID string) error {
	result, err := db.ExecContext(ctx, `
		UPDATE subscriptions SET status = 'cancelled', cancelled_at = ?
		WHERE user_id = ? AND status = 'active'
	`, time.Now().UnixMilli(), userID)
	if err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("active subscription for %s: %w", userID, ErrNotFound)
	}
	return nil
}

// CountActiveSubscriptions returns the number of active subscriptions per plan.
func (db *DB) CountActiveSubscriptions(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT plan_id, COUNT(*) FROM subscriptions WHERE status = 'active' GROUP BY plan_id
	`)
	if err != nil {
		return nil, fmt.Errorf("count subscriptions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			plan string
			n    int
		)
		if err := rows.Scan(&plan, &n); err != nil {
			return nil, fmt.Errorf("scan subscription count: %w", err)
		}
		counts[plan] = n
	}
	return counts, rows.Err()
}
