package qr

import (
	"context"
	"database/sql"
	"errors"
)

// Repository persists QR tokens in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Upsert installs t as the session's live token. The UNIQUE(session_id)
// constraint makes this atomic under concurrent issuance: the last writer
// wins and no window with zero or two tokens is observable.
func (r *Repository) Upsert(ctx context.Context, t Token) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO qr_tokens (token, session_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE SET
			token = EXCLUDED.token,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at
	`, t.Token, t.SessionID, t.ExpiresAt, t.CreatedAt)
	return err
}

// BySession returns the session's live token, nil when none exists.
func (r *Repository) BySession(ctx context.Context, sessionID string) (*Token, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token, session_id, expires_at, created_at
		FROM qr_tokens WHERE session_id = $1
	`, sessionID)
	return scanToken(row)
}

// ByValue looks a token up by its opaque value, nil when absent. Expired
// rows are returned as-is; expiry is the caller's check.
func (r *Repository) ByValue(ctx context.Context, token string) (*Token, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token, session_id, expires_at, created_at
		FROM qr_tokens WHERE token = $1
	`, token)
	return scanToken(row)
}

func scanToken(row *sql.Row) (*Token, error) {
	var t Token
	if err := row.Scan(&t.Token, &t.SessionID, &t.ExpiresAt, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
