package attendance

import (
	"errors"
	"time"
)

// Rejection taxonomy for scan attempts. Handlers map these to distinct HTTP
// statuses; anything else is a storage failure.
var (
	// ErrInvalidToken means the scanned token does not exist (never issued,
	// or rotated away). Rescanning the current code is the fix.
	ErrInvalidToken = errors.New("invalid qr token")
	// ErrTokenExpired means the token exists but its window has passed. The
	// displayed code should already have rotated; rescan it.
	ErrTokenExpired = errors.New("qr token expired")
	// ErrAlreadyRecorded means attendance for this (user, session) pair
	// already exists. Not retryable.
	ErrAlreadyRecorded = errors.New("attendance already recorded")
	// ErrNotFound means the attendance row does not exist.
	ErrNotFound = errors.New("attendance not found")
)

// Record is one user's proof of presence at one session. Rows are written
// once and never updated.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	ScannedAt time.Time `json:"scanned_at"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Receipt confirms a successful scan with the resolved session details.
type Receipt struct {
	AttendanceID string    `json:"id"`
	SessionName  string    `json:"session_name"`
	CourseName   string    `json:"course_name"`
	ScannedAt    time.Time `json:"scanned_at"`
}

// SessionEntry is a record joined with the attendee's profile, as listed per
// session for the instructor view and CSV export.
type SessionEntry struct {
	Record
	Name      string  `json:"name"`
	Username  string  `json:"username"`
	GroupName *string `json:"group_name,omitempty"`
}

// UserEntry is a record joined with its session, as listed per user for the
// statistics views. Ordered newest-first by the store.
type UserEntry struct {
	ID          string    `json:"id"`
	SessionName string    `json:"session_name"`
	CourseName  string    `json:"course_name"`
	ScannedAt   time.Time `json:"scanned_at"`
}
