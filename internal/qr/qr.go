package qr

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"classtrack/internal/metrics"
	"classtrack/internal/session"
)

// Token is the short-lived credential shown as a QR code. A session has at
// most one live token; issuing a new one replaces it.
type Token struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the token is past its expiry at the given instant.
func (t Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Store persists tokens keyed by session.
type Store interface {
	Upsert(ctx context.Context, t Token) error
	BySession(ctx context.Context, sessionID string) (*Token, error)
}

// SessionLookup verifies the target session exists.
type SessionLookup interface {
	ByID(ctx context.Context, id string) (*session.Session, error)
}

// Cache is a best-effort live-token cache. Failures are logged, never
// surfaced: the store is the source of truth.
type Cache interface {
	Put(ctx context.Context, t Token) error
	Get(ctx context.Context, sessionID string) (*Token, error)
}

// Issuer creates and rotates session tokens. Rotation is a single upsert
// keyed on session_id, so racing calls leave exactly one live token.
type Issuer struct {
	store    Store
	sessions SessionLookup
	cache    Cache
	ttl      time.Duration
	now      func() time.Time
}

// NewIssuer creates an issuer. cache may be nil.
func NewIssuer(store Store, sessions SessionLookup, cache Cache, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Issuer{store: store, sessions: sessions, cache: cache, ttl: ttl, now: time.Now}
}

// Issue rotates the session's token: a fresh unguessable value with a fresh
// expiry replaces whatever was live. Clients re-issue on a cadence shorter
// than the TTL so a valid token is always on display.
func (i *Issuer) Issue(ctx context.Context, sessionID string) (Token, error) {
	sess, err := i.sessions.ByID(ctx, sessionID)
	if err != nil {
		return Token{}, err
	}
	if sess == nil {
		return Token{}, session.ErrNotFound
	}

	now := i.now().UTC()
	t := Token{
		Token:     uuid.NewString(),
		SessionID: sessionID,
		ExpiresAt: now.Add(i.ttl),
		CreatedAt: now,
	}
	if err := i.store.Upsert(ctx, t); err != nil {
		return Token{}, err
	}
	if i.cache != nil {
		if err := i.cache.Put(ctx, t); err != nil {
			log.Printf("qr cache put failed for session %s: %v", sessionID, err)
		}
	}
	metrics.TokensIssued.Inc()
	return t, nil
}

// Current returns the session's live token, nil when none exists. The cache
// answers first; a miss falls through to the store.
func (i *Issuer) Current(ctx context.Context, sessionID string) (*Token, error) {
	if i.cache != nil {
		if t, err := i.cache.Get(ctx, sessionID); err == nil && t != nil {
			return t, nil
		}
	}
	return i.store.BySession(ctx, sessionID)
}
