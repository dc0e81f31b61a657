package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classtrack/internal/qr"
	"classtrack/internal/session"
)

type memTokens struct {
	byValue map[string]qr.Token
}

func (m *memTokens) ByValue(_ context.Context, token string) (*qr.Token, error) {
	if t, ok := m.byValue[token]; ok {
		return &t, nil
	}
	return nil, nil
}

type memLedger struct {
	mu   sync.Mutex
	seen map[string]bool
	rows []Record
}

func newMemLedger() *memLedger {
	return &memLedger{seen: make(map[string]bool)}
}

func (m *memLedger) Insert(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := rec.UserID + "/" + rec.SessionID
	if m.seen[key] {
		return Record{}, ErrAlreadyRecorded
	}
	m.seen[key] = true
	rec.CreatedAt = time.Now()
	m.rows = append(m.rows, rec)
	return rec, nil
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

func fixture(now time.Time) (*Service, *memLedger) {
	tokens := &memTokens{byValue: map[string]qr.Token{
		"tok-live": {Token: "tok-live", SessionID: "s1", ExpiresAt: now.Add(4 * time.Minute)},
		"tok-old":  {Token: "tok-old", SessionID: "s1", ExpiresAt: now.Add(-time.Minute)},
	}}
	sessions := &memSessions{byID: map[string]session.Session{
		"s1": {ID: "s1", Name: "Algebra I", CourseName: "MATH-101"},
	}}
	ledger := newMemLedger()
	svc := NewService(tokens, ledger, sessions)
	svc.now = func() time.Time { return now }
	return svc, ledger
}

func TestRecord(t *testing.T) {
	now := time.Now().UTC()
	svc, ledger := fixture(now)

	receipt, err := svc.Record(context.Background(), "tok-live", "u1", nil, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, receipt.AttendanceID)
	assert.Equal(t, "Algebra I", receipt.SessionName)
	assert.Equal(t, "MATH-101", receipt.CourseName)
	assert.Equal(t, now, receipt.ScannedAt)
	require.Len(t, ledger.rows, 1)
	assert.Equal(t, "u1", ledger.rows[0].UserID)
	assert.Equal(t, "s1", ledger.rows[0].SessionID)
}

func TestRecord_SecondScanRejected(t *testing.T) {
	svc, _ := fixture(time.Now().UTC())

	_, err := svc.Record(context.Background(), "tok-live", "u1", nil, nil)
	require.NoError(t, err)

	_, err = svc.Record(context.Background(), "tok-live", "u1", nil, nil)
	assert.ErrorIs(t, err, ErrAlreadyRecorded)
}

func TestRecord_DifferentUsersBothLand(t *testing.T) {
	svc, ledger := fixture(time.Now().UTC())

	_, err := svc.Record(context.Background(), "tok-live", "u1", nil, nil)
	require.NoError(t, err)
	_, err = svc.Record(context.Background(), "tok-live", "u2", nil, nil)
	require.NoError(t, err)

	assert.Len(t, ledger.rows, 2)
}

func TestRecord_UnknownToken(t *testing.T) {
	svc, _ := fixture(time.Now().UTC())

	_, err := svc.Record(context.Background(), "never-issued", "u1", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRecord_ExpiredToken(t *testing.T) {
	svc, ledger := fixture(time.Now().UTC())

	_, err := svc.Record(context.Background(), "tok-old", "u1", nil, nil)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Empty(t, ledger.rows)
}

func TestRecord_TokenPastWindow(t *testing.T) {
	now := time.Now().UTC()
	svc, _ := fixture(now)
	svc.now = func() time.Time { return now.Add(6 * time.Minute) }

	// A token that was live at issue time but is past its window now.
	_, err := svc.Record(context.Background(), "tok-live", "u1", nil, nil)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRecord_Geolocation(t *testing.T) {
	svc, ledger := fixture(time.Now().UTC())

	lat, lng := 52.52, 13.405
	_, err := svc.Record(context.Background(), "tok-live", "u1", &lat, &lng)
	require.NoError(t, err)

	require.Len(t, ledger.rows, 1)
	require.NotNil(t, ledger.rows[0].Latitude)
	assert.Equal(t, lat, *ledger.rows[0].Latitude)
	require.NotNil(t, ledger.rows[0].Longitude)
	assert.Equal(t, lng, *ledger.rows[0].Longitude)
}

func TestAddManual(t *testing.T) {
	svc, ledger := fixture(time.Now().UTC())

	rec, err := svc.AddManual(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)
	require.Len(t, ledger.rows, 1)

	// Same uniqueness invariant as the scan path.
	_, err = svc.AddManual(context.Background(), "u1", "s1")
	assert.ErrorIs(t, err, ErrAlreadyRecorded)
}

func TestAddManual_UnknownSession(t *testing.T) {
	svc, _ := fixture(time.Now().UTC())

	_, err := svc.AddManual(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, session.ErrNotFound)
}
