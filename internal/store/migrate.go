package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate applies the schema. Statements are idempotent so startup can run
// this unconditionally. Uniqueness invariants live here, not in application
// code: one live QR token per session, one attendance row per (user, session).
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            UUID PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name          TEXT NOT NULL,
			role          TEXT NOT NULL CHECK (role IN ('student','instructor','admin')),
			group_name    TEXT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id          UUID PRIMARY KEY,
			name        TEXT NOT NULL,
			course_name TEXT NOT NULL,
			date        TIMESTAMPTZ NOT NULL,
			created_by  UUID NOT NULL REFERENCES users(id),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS qr_tokens (
			token      TEXT PRIMARY KEY,
			session_id UUID NOT NULL UNIQUE REFERENCES sessions(id) ON DELETE CASCADE,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS attendance (
			id         UUID PRIMARY KEY,
			user_id    UUID NOT NULL REFERENCES users(id),
			session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			scanned_at TIMESTAMPTZ NOT NULL,
			latitude   DOUBLE PRECISION,
			longitude  DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id         BIGSERIAL PRIMARY KEY,
			kind       TEXT NOT NULL,
			subject    TEXT NOT NULL,
			detail     TEXT NOT NULL DEFAULT '',
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_user ON attendance (user_id, scanned_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_session ON attendance (session_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
