package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"classtrack/internal/user"
)

type memCredentials map[string]user.Profile

func (m memCredentials) ByUsername(_ context.Context, username string) (*user.Profile, error) {
	if p, ok := m[username]; ok {
		return &p, nil
	}
	return nil, nil
}

func credentialsWith(t *testing.T, username, password, role string) memCredentials {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return memCredentials{username: {
		ID:           "u1",
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}}
}

func TestSignIn(t *testing.T) {
	users := credentialsWith(t, "ada", "hunter22", user.RoleStudent)
	svc := NewService(users, "classtrack", "secret", 15*time.Minute, 24*time.Hour)

	profile, pair, err := svc.SignIn(context.Background(), "ada", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.ID)

	claims, err := Parse(pair.AccessToken, "secret", "classtrack")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, user.RoleStudent, claims.Role)
}

func TestSignIn_SyntheticEmailForm(t *testing.T) {
	users := credentialsWith(t, "ada", "hunter22", user.RoleStudent)
	svc := NewService(users, "classtrack", "secret", 15*time.Minute, 24*time.Hour)

	_, _, err := svc.SignIn(context.Background(), "ada@system.local", "hunter22")
	assert.NoError(t, err)
}

func TestSignIn_WrongPassword(t *testing.T) {
	users := credentialsWith(t, "ada", "hunter22", user.RoleStudent)
	svc := NewService(users, "classtrack", "secret", 15*time.Minute, 24*time.Hour)

	_, _, err := svc.SignIn(context.Background(), "ada", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestSignIn_UnknownUser(t *testing.T) {
	svc := NewService(memCredentials{}, "classtrack", "secret", 15*time.Minute, 24*time.Hour)

	_, _, err := svc.SignIn(context.Background(), "ghost", "whatever")
	assert.ErrorIs(t, err, ErrBadCredentials)
}
