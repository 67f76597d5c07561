package sessions

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned by Repository implementations when no
// session matches.
var ErrSessionNotFound = errors.New("session not found")

// Session is a server-side login session keyed by an opaque ID stored
// in a cookie.
type Session struct {
	ID        string
	AccountID int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Repository interface {
	Create(ctx context.Context, session Session) error
	FindByID(ctx context.Context, id string) (Session, error)

	// UpdateExpiry pushes the session's expiry forward for sliding
	// idle timeouts.
	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error

	Delete(ctx context.Context, id string) error
	DeleteByAccount(ctx context.Context, accountID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
