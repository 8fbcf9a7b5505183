// Package auth handles user accounts and login sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwulff/picorelay/internal/domain"
	"github.com/jwulff/picorelay/internal/storage"
)

// DefaultSessionTTL matches the original deployment's 7-day cookie lifetime.
const DefaultSessionTTL = 7 * 24 * time.Hour

// ErrInvalidCredentials is returned on unknown username or wrong password.
// Both cases report the same error so login cannot probe for usernames.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrNoSession is returned when a session id is absent, unknown, or expired.
var ErrNoSession = errors.New("no valid session")

// ErrMissingFields is returned when username or password is empty.
var ErrMissingFields = errors.New("missing username or password")

// Service manages users and sessions.
type Service struct {
	store storage.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewService creates an auth service. A non-positive ttl falls back to
// DefaultSessionTTL.
func NewService(store storage.Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Register creates a user and an initial session. Usernames are trimmed and
// lower-cased; duplicates fail with a conflict error.
func (s *Service) Register(ctx context.Context, username, password string) (*domain.User, *domain.Session, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return nil, nil, ErrMissingFields
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, nil, err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// Login verifies credentials and creates a session.
func (s *Service) Login(ctx context.Context, username, password string) (*domain.User, *domain.Session, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return nil, nil, ErrMissingFields
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// Logout deletes the session. Logging out an unknown session is a no-op.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, sessionID)
}

// Authenticate resolves a session id to its user id. Expired sessions are
// deleted on sight and report ErrNoSession.
func (s *Service) Authenticate(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrNoSession
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if storage.IsNotFound(err) {
			return "", ErrNoSession
		}
		return "", err
	}

	if session.Expired(s.now()) {
		_ = s.store.DeleteSession(ctx, sessionID)
		return "", ErrNoSession
	}
	return session.UserID, nil
}

// SessionTTL returns the configured session lifetime.
func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}

func (s *Service) createSession(ctx context.Context, userID string) (*domain.Session, error) {
	session := domain.NewSession(uuid.NewString(), userID, s.now(), s.ttl)
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
