package attendance

import (
	"context"
	"database/sql"

	"classtrack/internal/store"
)

// Repository persists attendance in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new attendance row. The UNIQUE(user_id, session_id)
// constraint rejects duplicates atomically; concurrent scans by the same
// user cannot both land.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (id, user_id, session_id, scanned_at, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, rec.ID, rec.UserID, rec.SessionID, rec.ScannedAt, rec.Latitude, rec.Longitude)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		if store.IsUniqueViolation(err) {
			return Record{}, ErrAlreadyRecorded
		}
		return Record{}, err
	}
	return rec, nil
}

// ListBySession returns a session's attendance joined with attendee profiles,
// ordered by scan time.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]SessionEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.user_id, a.session_id, a.scanned_at, a.latitude, a.longitude, a.created_at,
		       u.name, u.username, u.group_name
		FROM attendance a
		JOIN users u ON u.id = a.user_id
		WHERE a.session_id = $1
		ORDER BY a.scanned_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []SessionEntry
	for rows.Next() {
		var e SessionEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.ScannedAt, &e.Latitude, &e.Longitude, &e.CreatedAt,
			&e.Name, &e.Username, &e.GroupName); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// ListByUser returns a user's attendance joined with session details, newest
// scan first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]UserEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, s.name, s.course_name, a.scanned_at
		FROM attendance a
		JOIN sessions s ON s.id = a.session_id
		WHERE a.user_id = $1
		ORDER BY a.scanned_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []UserEntry
	for rows.Next() {
		var e UserEntry
		if err := rows.Scan(&e.ID, &e.SessionName, &e.CourseName, &e.ScannedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// Delete removes one attendance row by id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByUser removes all of a user's attendance rows, reporting the count.
// Used by the user deletion cascade.
func (r *Repository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
