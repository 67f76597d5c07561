package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/tendant/simple-account/pkg/errors"
)

var ErrSessionExpired = apperrors.New(apperrors.ErrCodeSessionExpired, "session expired or not found")

const (
	// DefaultIdleTimeout is the sliding window a session stays valid
	// without activity.
	DefaultIdleTimeout = 30 * time.Minute

	sessionIDBytes = 32
)

type Service struct {
	repo        Repository
	idleTimeout time.Duration
	now         func() time.Time
}

type Option func(*Service)

func WithIdleTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.idleTimeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a new session for the account and returns it. The
// session ID is an opaque random value; all state lives server side.
func (s *Service) Create(ctx context.Context, accountID int64) (Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return Session{}, fmt.Errorf("generating session id: %w", err)
	}

	now := s.now().UTC()
	session := Session{
		ID:        id,
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.idleTimeout),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// GetValid loads the session and slides its expiry forward. Expired or
// unknown sessions both come back as ErrSessionExpired so a caller
// cannot tell them apart.
func (s *Service) GetValid(ctx context.Context, id string) (Session, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Session{}, ErrSessionExpired
		}
		return Session{}, err
	}

	now := s.now().UTC()
	if !session.ExpiresAt.After(now) {
		// Best effort cleanup of the stale row
		_ = s.repo.Delete(ctx, id)
		return Session{}, ErrSessionExpired
	}

	session.ExpiresAt = now.Add(s.idleTimeout)
	if err := s.repo.UpdateExpiry(ctx, id, session.ExpiresAt); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return Session{}, err
	}
	return session, nil
}

// Revoke ends a single session. Revoking an unknown session is not an
// error.
func (s *Service) Revoke(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// RevokeAllForAccount ends every session the account holds, used after
// password changes and account deletion.
func (s *Service) RevokeAllForAccount(ctx context.Context, accountID int64) error {
	return s.repo.DeleteByAccount(ctx, accountID)
}

// PurgeExpired removes sessions past their expiry and reports how many
// were dropped.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now().UTC())
}

func generateSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
