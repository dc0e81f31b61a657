package user

import (
	"context"
	"database/sql"
	"errors"
)

// Repository persists user profiles in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new profile row.
func (r *Repository) Insert(ctx context.Context, p Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, name, role, group_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, p.ID, p.Username, p.PasswordHash, p.Name, p.Role, p.GroupName)
	return err
}

// ByUsername returns a profile by username, nil when absent.
func (r *Repository) ByUsername(ctx context.Context, username string) (*Profile, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, name, role, group_name, created_at, updated_at
		FROM users WHERE username = $1
	`, username))
}

// ByID returns a profile by id, nil when absent.
func (r *Repository) ByID(ctx context.Context, id string) (*Profile, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, name, role, group_name, created_at, updated_at
		FROM users WHERE id = $1
	`, id))
}

// RoleByID resolves the stored role for a user. Empty string when the user
// does not exist.
func (r *Repository) RoleByID(ctx context.Context, id string) (string, error) {
	var role string
	err := r.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id = $1`, id).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return role, err
}

// List returns all profiles ordered by name.
func (r *Repository) List(ctx context.Context) ([]Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, password_hash, name, role, group_name, created_at, updated_at
		FROM users ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Username, &p.PasswordHash, &p.Name, &p.Role, &p.GroupName, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// Delete removes a profile row.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

func (r *Repository) scanOne(row *sql.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Username, &p.PasswordHash, &p.Name, &p.Role, &p.GroupName, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
