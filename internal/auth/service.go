package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"classtrack/internal/user"
)

// ErrBadCredentials covers unknown usernames and wrong passwords alike.
var ErrBadCredentials = errors.New("invalid username or password")

// CredentialStore looks up profiles for sign-in.
type CredentialStore interface {
	ByUsername(ctx context.Context, username string) (*user.Profile, error)
}

// Service signs users in against stored bcrypt hashes and hands out JWT
// pairs. Logins accept either a bare username or the synthetic
// username@system.local form.
type Service struct {
	users      CredentialStore
	issuer     string
	signingKey string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService creates an auth service.
func NewService(users CredentialStore, issuer, signingKey string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		users:      users,
		issuer:     issuer,
		signingKey: signingKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// SignIn verifies credentials and returns the profile with fresh tokens.
func (s *Service) SignIn(ctx context.Context, login, password string) (user.Profile, TokenPair, error) {
	username := login
	if i := strings.IndexByte(login, '@'); i >= 0 {
		username = login[:i]
	}

	p, err := s.users.ByUsername(ctx, username)
	if err != nil {
		return user.Profile{}, TokenPair{}, err
	}
	if p == nil {
		return user.Profile{}, TokenPair{}, ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return user.Profile{}, TokenPair{}, ErrBadCredentials
	}

	pair, err := Issue(p.ID, p.Role, s.issuer, s.signingKey, s.accessTTL, s.refreshTTL)
	if err != nil {
		return user.Profile{}, TokenPair{}, err
	}
	return *p, pair, nil
}
