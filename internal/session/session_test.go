package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	byID map[string]Session
}

func newMemStore() *memStore {
	return &memStore{byID: make(map[string]Session)}
}

func (m *memStore) Insert(_ context.Context, s Session) (Session, error) {
	m.byID[s.ID] = s
	return s, nil
}

func (m *memStore) ByID(_ context.Context, id string) (*Session, error) {
	if s, ok := m.byID[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *memStore) List(context.Context) ([]Session, error) {
	var res []Session
	for _, s := range m.byID {
		res = append(res, s)
	}
	return res, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	delete(m.byID, id)
	return nil
}

func (m *memStore) Count(context.Context) (int, error) {
	return len(m.byID), nil
}

func TestCreate(t *testing.T) {
	reg := NewRegistry(newMemStore())
	date := time.Date(2026, time.September, 7, 9, 0, 0, 0, time.UTC)

	sess, err := reg.Create(context.Background(), "Algebra I", "MATH-101", date, "instructor-1")
	require.NoError(t, err)

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "instructor-1", sess.CreatedBy)
	assert.Equal(t, date, sess.Date)
	assert.WithinDuration(t, time.Now(), sess.CreatedAt, 2*time.Second)
	assert.Equal(t, sess.CreatedAt, sess.UpdatedAt)
}

func TestCreate_RequiresNames(t *testing.T) {
	reg := NewRegistry(newMemStore())

	_, err := reg.Create(context.Background(), "", "MATH-101", time.Now(), "u1")
	assert.Error(t, err)
	_, err = reg.Create(context.Background(), "Algebra I", "", time.Now(), "u1")
	assert.Error(t, err)
}

func TestGet_NotFound(t *testing.T) {
	reg := NewRegistry(newMemStore())

	_, err := reg.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAndCount(t *testing.T) {
	store := newMemStore()
	reg := NewRegistry(store)

	sess, err := reg.Create(context.Background(), "Algebra I", "MATH-101", time.Now(), "u1")
	require.NoError(t, err)

	n, err := reg.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, reg.Delete(context.Background(), sess.ID))
	n, err = reg.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
