package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema statements are idempotent so Migrate can run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username      TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		created_by    TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS role_changes (
		id         UUID PRIMARY KEY,
		action     TEXT NOT NULL,
		target     TEXT NOT NULL,
		actor      TEXT NOT NULL,
		changed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS demotion_votes (
		target  TEXT NOT NULL,
		voter   TEXT NOT NULL,
		cast_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (target, voter)
	)`,
	`CREATE TABLE IF NOT EXISTS recipients (
		key        TEXT PRIMARY KEY,
		pseudonym  TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS interactions (
		id            UUID PRIMARY KEY,
		logged_by     TEXT NOT NULL,
		recipient_key TEXT NOT NULL REFERENCES recipients(key),
		type          TEXT NOT NULL,
		notes         TEXT,
		logged_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS interactions_recipient_idx
		ON interactions (recipient_key, logged_at DESC)`,
	`CREATE TABLE IF NOT EXISTS surveys (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		sections    JSONB NOT NULL,
		created_by  TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS survey_responses (
		recipient_key TEXT NOT NULL REFERENCES recipients(key),
		section       TEXT NOT NULL,
		answers       JSONB NOT NULL,
		survey_id     UUID,
		submitted_by  TEXT,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ,
		PRIMARY KEY (recipient_key, section)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		id         UUID PRIMARY KEY,
		actor      TEXT,
		subject    TEXT,
		action     TEXT NOT NULL,
		reason     TEXT,
		request_id TEXT,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate applies the kindmesh schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
