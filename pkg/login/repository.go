package login

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by LoginRepository implementations
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrResetTokenNotFound = errors.New("password reset token not found")
	ErrDuplicateUsername  = errors.New("username already exists")
)

// Credentials is the slice of an account the authenticator needs
type Credentials struct {
	AccountID    int64
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// ResetToken represents a single-use password recovery grant
type ResetToken struct {
	ID        int64
	AccountID int64
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	IsUsed    bool
}

// CreateAccountParams carries the fields persisted at registration
type CreateAccountParams struct {
	Username     string
	PasswordHash string
	Email        string
}

// CreateResetTokenParams carries the fields persisted for a new reset token
type CreateResetTokenParams struct {
	AccountID int64
	Token     string
	ExpiresAt time.Time
}

// LoginRepository defines the data access needed by the login service.
// Username matching is case-sensitive exact match.
type LoginRepository interface {
	FindByUsername(ctx context.Context, username string) (Credentials, error)
	FindByEmail(ctx context.Context, email string) (Credentials, error)

	// CreateAccount inserts a new account. A username collision, including
	// one lost in a race against the unique index, returns
	// ErrDuplicateUsername rather than succeeding silently.
	CreateAccount(ctx context.Context, arg CreateAccountParams) (int64, error)

	// Reset token operations
	DeleteLiveResetTokens(ctx context.Context, accountID int64) error
	CreateResetToken(ctx context.Context, arg CreateResetTokenParams) (int64, error)

	// FindResetToken matches by the (account, token string) pair, newest
	// first when several rows exist.
	FindResetToken(ctx context.Context, accountID int64, token string) (ResetToken, error)

	// RedeemResetToken updates the account's password hash and marks the
	// token used as a single atomic unit.
	RedeemResetToken(ctx context.Context, tokenID int64, accountID int64, passwordHash string) error
}
