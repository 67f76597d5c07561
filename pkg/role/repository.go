package role

import (
	"context"
	"errors"
)

// Sentinel errors returned by Repository implementations
var (
	ErrRoleMissing         = errors.New("role not found")
	ErrAccountMissing      = errors.New("account not found")
	ErrDuplicateAssignment = errors.New("assignment already exists")
	ErrAssignmentMissing   = errors.New("assignment not found")
)

// Role is a named permission grouping
type Role struct {
	ID   int64
	Name string
}

// Repository defines the data access for roles and account-role
// assignments. The (account, role) pair is unique at the store level;
// a racing duplicate insert surfaces as ErrDuplicateAssignment.
type Repository interface {
	FindRoles(ctx context.Context) ([]Role, error)
	FindRoleByName(ctx context.Context, name string) (Role, error)
	FindRoleNamesByAccount(ctx context.Context, accountID int64) ([]string, error)
	AccountExists(ctx context.Context, accountID int64) (bool, error)
	CreateAssignment(ctx context.Context, accountID, roleID int64) error
	DeleteAssignment(ctx context.Context, accountID, roleID int64) error

	// EnsureRole inserts the role if absent; used for seeding
	EnsureRole(ctx context.Context, name string) error
}
