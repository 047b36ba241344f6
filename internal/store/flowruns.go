package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// MaxFlowOutput caps the stored flow output JSON, in bytes.
const MaxFlowOutput = 10 * 1024

// FlowRun records one AI flow invocation.
type FlowRun struct {
	ID         int64
	Flow       string
	Query      string
	Status     string
	Output     string
	Error      string
	ActorEmail string
	DurationMs int64
	CreatedAt  time.Time
}

// FlowRunFilter narrows RecentFlowRuns. Zero fields match everything.
type FlowRunFilter struct {
	Flow       string
	ActorEmail string
	Limit      int
}

// AddFlowRun inserts run, truncating its output. CreatedAt defaults to now.
func (db *DB) AddFlowRun(ctx context.Context, run *FlowRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.Output = truncate(run.Output, MaxFlowOutput)

	result, err := db.ExecContext(ctx, `
		INSERT INTO flow_runs (flow, query, status, output, error, actor_email, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Flow, run.Query, run.Status, nullIfEmpty(run.Output), nullIfEmpty(run.Error),
		nullIfEmpty(run.ActorEmail), run.DurationMs, run.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert flow run: %w", err)
	}
	run.ID, _ = result.LastInsertId()
	return nil
}

// RecentFlowRuns returns flow runs matching f, newest first.
func (db *DB) RecentFlowRuns(ctx context.Context, f FlowRunFilter) ([]FlowRun, error) {
	var (
		where []string
		args  []any
	)
	if f.Flow != "" {
		where = append(where, "flow = ?")
		args = append(args, f.Flow)
	}
	if f.ActorEmail != "" {
		where = append(where, "actor_email = ?")
		args = append(args, f.ActorEmail)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, flow, query, status, output, error, actor_email, duration_ms, created_at FROM flow_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query flow runs: %w", err)
	}
	defer rows.Close()

	var runs []FlowRun
	for rows.Next() {
		var (
			r                    FlowRun
			output, errMsg, actr sql.NullString
			created              int64
		)
		if err := rows.Scan(&r.ID, &r.Flow, &r.Query, &r.Status, &output, &errMsg, &actr, &r.DurationMs, &created); err != nil {
			return nil, fmt.Errorf("scan flow run: %w", err)
		}
		r.Output = output.String
		r.Error = errMsg.String
		r.ActorEmail = actr.String
		r.CreatedAt = time.UnixMilli(created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
