package role

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/tendant/simple-account/pkg/errors"
)

// Built-in roles seeded at startup
const (
	AdminRoleName = "Admin"
	UserRoleName  = "User"
)

var (
	ErrRoleNotFound    = apperrors.New(apperrors.ErrCodeRoleNotFound, "role not found")
	ErrAccountNotFound = apperrors.New(apperrors.ErrCodeAccountNotFound, "account not found")
	ErrAlreadyAssigned = apperrors.New(apperrors.ErrCodeAlreadyAssigned, "role already assigned to account")
	ErrNotAssigned     = apperrors.New(apperrors.ErrCodeNotAssigned, "role not assigned to account")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Seed ensures the built-in roles exist. Safe to run on every startup.
func (s *Service) Seed(ctx context.Context) error {
	for _, name := range []string{AdminRoleName, UserRoleName} {
		if err := s.repo.EnsureRole(ctx, name); err != nil {
			return fmt.Errorf("seeding roles: %w", err)
		}
	}
	return nil
}

func (s *Service) FindRoles(ctx context.Context) ([]Role, error) {
	return s.repo.FindRoles(ctx)
}

func (s *Service) FindRoleNamesByAccount(ctx context.Context, accountID int64) ([]string, error) {
	return s.repo.FindRoleNamesByAccount(ctx, accountID)
}

// Grant assigns the named role without checking that the account
// exists, for callers that just created it. The store's foreign key
// still rejects a bogus account ID.
func (s *Service) Grant(ctx context.Context, accountID int64, roleName string) error {
	role, err := s.repo.FindRoleByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, ErrRoleMissing) {
			return ErrRoleNotFound
		}
		return err
	}
	if err := s.repo.CreateAssignment(ctx, accountID, role.ID); err != nil {
		if errors.Is(err, ErrDuplicateAssignment) {
			return ErrAlreadyAssigned
		}
		return err
	}
	return nil
}

// AssignRole grants the named role to the account. The existence checks
// give precise errors; the unique constraint covers the race between
// check and insert.
func (s *Service) AssignRole(ctx context.Context, accountID int64, roleName string) error {
	exists, err := s.repo.AccountExists(ctx, accountID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}

	role, err := s.repo.FindRoleByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, ErrRoleMissing) {
			return ErrRoleNotFound
		}
		return err
	}

	if err := s.repo.CreateAssignment(ctx, accountID, role.ID); err != nil {
		if errors.Is(err, ErrDuplicateAssignment) {
			return ErrAlreadyAssigned
		}
		return err
	}
	return nil
}

// UnassignRole removes the named role from the account.
func (s *Service) UnassignRole(ctx context.Context, accountID int64, roleName string) error {
	exists, err := s.repo.AccountExists(ctx, accountID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}

	role, err := s.repo.FindRoleByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, ErrRoleMissing) {
			return ErrRoleNotFound
		}
		return err
	}

	if err := s.repo.DeleteAssignment(ctx, accountID, role.ID); err != nil {
		if errors.Is(err, ErrAssignmentMissing) {
			return ErrNotAssigned
		}
		return err
	}
	return nil
}
