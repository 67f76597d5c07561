package accounts

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by Repository implementations
var (
	ErrAccountMissing    = errors.New("account not found")
	ErrDuplicateUsername = errors.New("username already exists")
)

// Account is a stored user account. PasswordHash never leaves the
// service layer.
type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// AccountWithRoles pairs an account with its role names for admin
// listings.
type AccountWithRoles struct {
	Account
	Roles []string
}

// UpdateParams carries the mutable account fields. Nil means leave the
// field unchanged.
type UpdateParams struct {
	Username *string
	Email    *string
	IsActive *bool
}

type Repository interface {
	FindByID(ctx context.Context, id int64) (Account, error)
	FindAccounts(ctx context.Context) ([]Account, error)
	FindAccountsWithRoles(ctx context.Context) ([]AccountWithRoles, error)

	// Update applies the non-nil fields. A username collision surfaces
	// as ErrDuplicateUsername.
	Update(ctx context.Context, id int64, params UpdateParams) error

	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// Delete removes the account; assignments, reset tokens and
	// sessions go with it via cascading constraints.
	Delete(ctx context.Context, id int64) error
}
