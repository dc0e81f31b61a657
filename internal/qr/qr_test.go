package qr

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classtrack/internal/session"
)

type memTokenStore struct {
	mu        sync.Mutex
	bySession map[string]Token
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{bySession: make(map[string]Token)}
}

func (m *memTokenStore) Upsert(_ context.Context, t Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bySession[t.SessionID] = t
	return nil
}

func (m *memTokenStore) BySession(_ context.Context, sessionID string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.bySession[sessionID]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *memTokenStore) ByValue(_ context.Context, token string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.bySession {
		if t.Token == token {
			return &t, nil
		}
	}
	return nil, nil
}

func (m *memTokenStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bySession)
}

type memSessions struct {
	byID map[string]session.Session
}

func (m *memSessions) ByID(_ context.Context, id string) (*session.Session, error) {
	if s, ok := m.byID[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func sessionsWith(ids ...string) *memSessions {
	m := &memSessions{byID: make(map[string]session.Session)}
	for _, id := range ids {
		m.byID[id] = session.Session{ID: id, Name: "Algebra I", CourseName: "MATH-101"}
	}
	return m
}

func TestIssue(t *testing.T) {
	store := newMemTokenStore()
	issuer := NewIssuer(store, sessionsWith("s1"), nil, 5*time.Minute)

	tok, err := issuer.Issue(context.Background(), "s1")
	require.NoError(t, err)

	assert.NotEmpty(t, tok.Token)
	assert.Equal(t, "s1", tok.SessionID)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), tok.ExpiresAt, 2*time.Second)
}

func TestIssue_UnknownSession(t *testing.T) {
	issuer := NewIssuer(newMemTokenStore(), sessionsWith(), nil, 5*time.Minute)

	_, err := issuer.Issue(context.Background(), "nope")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestIssue_RotationReplacesToken(t *testing.T) {
	store := newMemTokenStore()
	issuer := NewIssuer(store, sessionsWith("s1"), nil, 5*time.Minute)

	t1, err := issuer.Issue(context.Background(), "s1")
	require.NoError(t, err)
	t2, err := issuer.Issue(context.Background(), "s1")
	require.NoError(t, err)

	assert.NotEqual(t, t1.Token, t2.Token)
	assert.Equal(t, 1, store.count())

	// The rotated-away token is gone; only the fresh one resolves.
	old, err := store.ByValue(context.Background(), t1.Token)
	require.NoError(t, err)
	assert.Nil(t, old)
	live, err := store.ByValue(context.Background(), t2.Token)
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, t2.Token, live.Token)
}

func TestIssue_ConcurrentCallsLeaveOneToken(t *testing.T) {
	store := newMemTokenStore()
	issuer := NewIssuer(store, sessionsWith("s1"), nil, 5*time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := issuer.Issue(context.Background(), "s1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.count())
	live, err := store.BySession(context.Background(), "s1")
	require.NoError(t, err)
	assert.NotNil(t, live)
}

func TestCurrent(t *testing.T) {
	store := newMemTokenStore()
	issuer := NewIssuer(store, sessionsWith("s1"), nil, 5*time.Minute)

	none, err := issuer.Current(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, none)

	issued, err := issuer.Issue(context.Background(), "s1")
	require.NoError(t, err)

	live, err := issuer.Current(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, issued.Token, live.Token)
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	tok := Token{ExpiresAt: now.Add(5 * time.Minute)}

	assert.False(t, tok.Expired(now))
	assert.False(t, tok.Expired(now.Add(5*time.Minute)))
	assert.True(t, tok.Expired(now.Add(5*time.Minute+time.Second)))
}
