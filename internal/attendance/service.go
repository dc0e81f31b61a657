package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"classtrack/internal/metrics"
	"classtrack/internal/qr"
	"classtrack/internal/session"
)

// TokenLookup finds a token by its scanned value.
type TokenLookup interface {
	ByValue(ctx context.Context, token string) (*qr.Token, error)
}

// Ledger persists attendance. Insert must enforce the (user, session)
// uniqueness constraint atomically and return ErrAlreadyRecorded on conflict.
type Ledger interface {
	Insert(ctx context.Context, rec Record) (Record, error)
}

// SessionResolver resolves the session a token points at.
type SessionResolver interface {
	ByID(ctx context.Context, id string) (*session.Session, error)
}

// Service validates scanned tokens and records attendance.
type Service struct {
	tokens   TokenLookup
	ledger   Ledger
	sessions SessionResolver
	now      func() time.Time
}

// NewService creates a service.
func NewService(tokens TokenLookup, ledger Ledger, sessions SessionResolver) *Service {
	return &Service{tokens: tokens, ledger: ledger, sessions: sessions, now: time.Now}
}

// Record validates the scanned token and writes the attendance row. The
// rejection reason is always precise: unknown token, expired token, or a
// duplicate scan. Geolocation is advisory and never required. Expired token
// rows stay in place; the next issuance for their session replaces them.
func (s *Service) Record(ctx context.Context, token, userID string, lat, lng *float64) (Receipt, error) {
	tok, err := s.tokens.ByValue(ctx, token)
	if err != nil {
		metrics.Scans.WithLabelValues(metrics.ScanError).Inc()
		return Receipt{}, err
	}
	if tok == nil {
		metrics.Scans.WithLabelValues(metrics.ScanInvalid).Inc()
		return Receipt{}, ErrInvalidToken
	}

	now := s.now().UTC()
	if tok.Expired(now) {
		metrics.Scans.WithLabelValues(metrics.ScanExpired).Inc()
		return Receipt{}, ErrTokenExpired
	}

	sess, err := s.sessions.ByID(ctx, tok.SessionID)
	if err != nil {
		metrics.Scans.WithLabelValues(metrics.ScanError).Inc()
		return Receipt{}, err
	}
	if sess == nil {
		metrics.Scans.WithLabelValues(metrics.ScanInvalid).Inc()
		return Receipt{}, ErrInvalidToken
	}

	rec, err := s.ledger.Insert(ctx, Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: tok.SessionID,
		ScannedAt: now,
		Latitude:  lat,
		Longitude: lng,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyRecorded) {
			metrics.Scans.WithLabelValues(metrics.ScanDuplicate).Inc()
		} else {
			metrics.Scans.WithLabelValues(metrics.ScanError).Inc()
		}
		return Receipt{}, err
	}

	metrics.Scans.WithLabelValues(metrics.ScanRecorded).Inc()
	return Receipt{
		AttendanceID: rec.ID,
		SessionName:  sess.Name,
		CourseName:   sess.CourseName,
		ScannedAt:    rec.ScannedAt,
	}, nil
}

// AddManual records attendance without a token, for the admin manual-add
// path. The same uniqueness invariant applies.
func (s *Service) AddManual(ctx context.Context, userID, sessionID string) (Record, error) {
	sess, err := s.sessions.ByID(ctx, sessionID)
	if err != nil {
		return Record{}, err
	}
	if sess == nil {
		return Record{}, session.ErrNotFound
	}
	return s.ledger.Insert(ctx, Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		ScannedAt: s.now().UTC(),
	})
}
