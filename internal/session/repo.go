package session

import (
	"context"
	"database/sql"
	"errors"
)

// Repository persists sessions in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new session row.
func (r *Repository) Insert(ctx context.Context, s Session) (Session, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, course_name, date, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.Name, s.CourseName, s.Date, s.CreatedBy, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

// ByID returns a session by id, nil when absent.
func (r *Repository) ByID(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, course_name, date, created_by, created_at, updated_at
		FROM sessions WHERE id = $1
	`, id)
	var s Session
	if err := row.Scan(&s.ID, &s.Name, &s.CourseName, &s.Date, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// List returns all sessions ordered by scheduled date descending.
func (r *Repository) List(ctx context.Context) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, course_name, date, created_by, created_at, updated_at
		FROM sessions ORDER BY date DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Name, &s.CourseName, &s.Date, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// Delete removes a session row. Dependent qr_tokens and attendance rows
// cascade in the schema.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// Count returns the global session count.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}

// DeleteByCreator removes every session a user created, reporting how many
// rows went away. Used by the user deletion cascade.
func (r *Repository) DeleteByCreator(ctx context.Context, creatorID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE created_by = $1`, creatorID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
