package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"joinguard/internal/logger"
)

// schemaStatements create the tables used by the join-request store.
// The partial unique index enforces at most one pending request per applicant.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS join_requests (
		id                   UUID PRIMARY KEY,
		applicant_id         BIGINT NOT NULL,
		display_name         TEXT NOT NULL DEFAULT '',
		username             TEXT NOT NULL DEFAULT '',
		language_code        TEXT NOT NULL DEFAULT '',
		status               TEXT NOT NULL,
		reason               TEXT NOT NULL DEFAULT '',
		moderator_message_id BIGINT,
		moderator_id         BIGINT,
		platform_outcome     TEXT NOT NULL DEFAULT '',
		platform_success     BOOLEAN,
		applicant_notified   BOOLEAN,
		replies              JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at           TIMESTAMPTZ NOT NULL,
		updated_at           TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS join_requests_one_pending_idx
		ON join_requests (applicant_id) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS join_requests_status_created_idx
		ON join_requests (status, created_at)`,
	`CREATE INDEX IF NOT EXISTS join_requests_applicant_created_idx
		ON join_requests (applicant_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS banned_users (
		applicant_id BIGINT PRIMARY KEY,
		moderator_id BIGINT NOT NULL,
		reason       TEXT NOT NULL DEFAULT '',
		banned_at    TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		logger.StoreCall("EnsureSchema", stmt)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.StoreResult("EnsureSchema", 0, err, "statement", i)
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	logger.Info("Database schema ensured", "statements", len(schemaStatements))
	return nil
}
