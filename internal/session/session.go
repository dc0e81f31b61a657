package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound means the session does not exist.
var ErrNotFound = errors.New("session not found")

// Session is one scheduled class meeting.
type Session struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CourseName string    `json:"course_name"`
	Date       time.Time `json:"date"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store is the persistence the registry needs.
type Store interface {
	Insert(ctx context.Context, s Session) (Session, error)
	ByID(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context) ([]Session, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// Registry manages class sessions.
type Registry struct {
	store Store
}

// NewRegistry creates a registry.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Create stamps ownership and timestamps and persists the session.
func (r *Registry) Create(ctx context.Context, name, courseName string, date time.Time, creatorID string) (Session, error) {
	if name == "" || courseName == "" {
		return Session{}, errors.New("name and course name required")
	}
	now := time.Now().UTC()
	return r.store.Insert(ctx, Session{
		ID:         uuid.NewString(),
		Name:       name,
		CourseName: courseName,
		Date:       date,
		CreatedBy:  creatorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

// Get returns one session.
func (r *Registry) Get(ctx context.Context, id string) (Session, error) {
	s, err := r.store.ByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if s == nil {
		return Session{}, ErrNotFound
	}
	return *s, nil
}

// List returns all sessions, newest scheduled date first.
func (r *Registry) List(ctx context.Context) ([]Session, error) {
	return r.store.List(ctx)
}

// Delete removes a session. Its QR token and attendance rows go with it; the
// schema cascades both, so a delete never leaves orphans behind.
func (r *Registry) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, id)
}

// Count returns the global number of sessions.
func (r *Registry) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx)
}
