package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "users: student, va and print-center accounts",
		SQL: `
CREATE TABLE users (
    id             TEXT PRIMARY KEY,
    email          TEXT NOT NULL UNIQUE,
    name           TEXT NOT NULL,
    role           TEXT NOT NULL CHECK (role IN ('student', 'va', 'print-center')),
    password_hash  TEXT NOT NULL,
    created_at     INTEGER NOT NULL
);

CREATE INDEX idx_users_role ON users(role);
`,
	},
	{
		Version:     2,
		Description: "auth_sessions: cookie sessions for accounts and the admin",
		SQL: `
CREATE TABLE auth_sessions (
    token          TEXT PRIMARY KEY,
    email          TEXT NOT NULL,
    role           TEXT NOT NULL CHECK (role IN ('student', 'va', 'print-center', 'admin')),
    user_id        TEXT,
    created_at     INTEGER NOT NULL,
    expires_at     INTEGER NOT NULL,

    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX idx_auth_sessions_expires ON auth_sessions(expires_at);
`,
	},
	{
		Version:     3,
		Description: "subscriptions: plan selected per user",
		SQL: `
CREATE TABLE subscriptions (
    id             INTEGER PRIMARY KEY,
    user_id        TEXT NOT NULL,
    plan_id        TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'cancelled')),
    created_at     INTEGER NOT NULL,
    cancelled_at   INTEGER,

    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX idx_subscriptions_active ON subscriptions(user_id) WHERE status = 'active';
`,
	},
	{
		Version:     4,
		Description: "activity: per-user activity log",
		SQL: `
CREATE TABLE activity (
    id             INTEGER PRIMARY KEY,
    actor_email    TEXT NOT NULL,
    role           TEXT NOT NULL,
    action         TEXT NOT NULL,
    detail         TEXT,
    created_at     INTEGER NOT NULL
);

CREATE INDEX idx_activity_actor   ON activity(actor_email);
CREATE INDEX idx_activity_created ON activity(created_at DESC);
`,
	},
	{
		Version:     5,
		Description: "chat_messages: support chat",
		SQL: `
CREATE TABLE chat_messages (
    id             TEXT PRIMARY KEY,
    conversation   TEXT NOT NULL,
    sender_email   TEXT NOT NULL,
    sender_role    TEXT NOT NULL,
    body           TEXT NOT NULL,
    created_at     INTEGER NOT NULL
);

CREATE INDEX idx_chat_conversation ON chat_messages(conversation, created_at);
`,
	},
	{
		Version:     6,
		Description: "flow_runs: AI flow history",
		SQL: `
CREATE TABLE flow_runs (
    id             INTEGER PRIMARY KEY,
    flow           TEXT NOT NULL,
    query          TEXT NOT NULL,
    status         TEXT NOT NULL,
    output         TEXT,
    error          TEXT,
    actor_email    TEXT,
    duration_ms    INTEGER NOT NULL DEFAULT 0,
    created_at     INTEGER NOT NULL
);

CREATE INDEX idx_flow_runs_flow  ON flow_runs(flow, created_at DESC);
CREATE INDEX idx_flow_runs_actor ON flow_runs(actor_email);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
