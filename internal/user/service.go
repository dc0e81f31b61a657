package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"classtrack/internal/store"
)

var (
	// ErrUsernameTaken means a profile with that username already exists.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrNotFound means the user does not exist.
	ErrNotFound = errors.New("user not found")
)

// Store is the persistence the service needs for profiles.
type Store interface {
	Insert(ctx context.Context, p Profile) error
	ByID(ctx context.Context, id string) (*Profile, error)
	List(ctx context.Context) ([]Profile, error)
	Delete(ctx context.Context, id string) error
}

// AttendanceRemover deletes all attendance rows belonging to a user.
type AttendanceRemover interface {
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// SessionRemover deletes all sessions created by a user.
type SessionRemover interface {
	DeleteByCreator(ctx context.Context, creatorID string) (int64, error)
}

// Service provisions and removes accounts. Removal is an ordered cascade:
// attendance first, then created sessions (their tokens and attendance go
// with them in-store), then the profile row that carries the credentials.
type Service struct {
	users    Store
	ledger   AttendanceRemover
	registry SessionRemover
}

// NewService creates a service backed by the given stores.
func NewService(users Store, ledger AttendanceRemover, registry SessionRemover) *Service {
	return &Service{users: users, ledger: ledger, registry: registry}
}

// ProvisionInput is the admin-supplied account data.
type ProvisionInput struct {
	Username  string  `json:"username" binding:"required"`
	Password  string  `json:"password" binding:"required,min=6"`
	Name      string  `json:"name" binding:"required"`
	Role      string  `json:"role" binding:"required"`
	GroupName *string `json:"group_name"`
}

// Provision creates a profile with a bcrypt password hash. The row carries
// both credentials and role, so there is no second system to roll back on
// failure.
func (s *Service) Provision(ctx context.Context, in ProvisionInput) (Profile, error) {
	if !ValidRole(in.Role) {
		return Profile{}, fmt.Errorf("invalid role %q", in.Role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{
		ID:           uuid.NewString(),
		Username:     in.Username,
		PasswordHash: string(hash),
		Name:         in.Name,
		Role:         in.Role,
		GroupName:    in.GroupName,
	}
	if err := s.users.Insert(ctx, p); err != nil {
		if store.IsUniqueViolation(err) {
			return Profile{}, ErrUsernameTaken
		}
		return Profile{}, err
	}
	return p, nil
}

// Get returns a profile by id.
func (s *Service) Get(ctx context.Context, id string) (Profile, error) {
	p, err := s.users.ByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if p == nil {
		return Profile{}, ErrNotFound
	}
	return *p, nil
}

// List returns all profiles.
func (s *Service) List(ctx context.Context) ([]Profile, error) {
	return s.users.List(ctx)
}

// CascadeStep records the outcome of one stage of a user deletion.
type CascadeStep struct {
	Name    string `json:"name"`
	Done    bool   `json:"done"`
	Removed int64  `json:"removed,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CascadeReport describes how far a user deletion got. Completed is true only
// when every step succeeded.
type CascadeReport struct {
	UserID    string        `json:"user_id"`
	Steps     []CascadeStep `json:"steps"`
	Completed bool          `json:"completed"`
}

// Delete removes a user and everything they own, stopping at the first
// failure so the caller knows exactly which steps took effect.
func (s *Service) Delete(ctx context.Context, userID string) (CascadeReport, error) {
	report := CascadeReport{UserID: userID}

	p, err := s.users.ByID(ctx, userID)
	if err != nil {
		return report, err
	}
	if p == nil {
		return report, ErrNotFound
	}

	n, err := s.ledger.DeleteByUser(ctx, userID)
	report.Steps = append(report.Steps, step("attendance", n, err))
	if err != nil {
		return report, fmt.Errorf("delete attendance: %w", err)
	}

	n, err = s.registry.DeleteByCreator(ctx, userID)
	report.Steps = append(report.Steps, step("sessions", n, err))
	if err != nil {
		return report, fmt.Errorf("delete sessions: %w", err)
	}

	err = s.users.Delete(ctx, userID)
	report.Steps = append(report.Steps, step("profile", 1, err))
	if err != nil {
		return report, fmt.Errorf("delete profile: %w", err)
	}

	report.Completed = true
	return report, nil
}

func step(name string, removed int64, err error) CascadeStep {
	st := CascadeStep{Name: name, Done: err == nil, Removed: removed}
	if err != nil {
		st.Error = err.Error()
		st.Removed = 0
	}
	return st
}
