package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"classtrack/internal/queue"
)

// Event kinds recorded in the audit trail.
const (
	KindTokenIssued        = "token.issued"
	KindAttendanceRecorded = "attendance.recorded"
	KindAttendanceDeleted  = "attendance.deleted"
	KindUserProvisioned    = "user.provisioned"
	KindUserDeleted        = "user.deleted"
	KindSessionDeleted     = "session.deleted"
)

// MessageType marks audit messages on the queue.
const MessageType = "audit"

// Event is one auditable action. Subject identifies the affected entity.
type Event struct {
	Kind       string    `json:"kind"`
	Subject    string    `json:"subject"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publish enqueues an event, best-effort: a full or unreachable queue is
// logged and dropped rather than failing the user-facing operation.
func Publish(ctx context.Context, q queue.Queue, kind, subject, detail string) {
	evt := Event{Kind: kind, Subject: subject, Detail: detail, OccurredAt: time.Now().UTC()}
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("audit marshal failed: %v", err)
		return
	}
	if err := q.Publish(ctx, queue.Message{Type: MessageType, Body: body}); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}

// Repository appends audit events to Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Append writes one event row.
func (r *Repository) Append(ctx context.Context, evt Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (kind, subject, detail, occurred_at)
		VALUES ($1, $2, $3, $4)
	`, evt.Kind, evt.Subject, evt.Detail, evt.OccurredAt)
	return err
}
