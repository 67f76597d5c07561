package accounts

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/tendant/simple-account/pkg/errors"
	"github.com/tendant/simple-account/pkg/login"
	"github.com/tendant/simple-account/pkg/sessions"
)

var (
	ErrAccountNotFound = apperrors.New(apperrors.ErrCodeAccountNotFound, "account not found")
	ErrNoAccounts      = apperrors.New(apperrors.ErrCodeAccountNotFound, "no accounts found")
	ErrUsernameTaken   = apperrors.New(apperrors.ErrCodeUsernameTaken, "username already taken")
	ErrWrongPassword   = apperrors.New(apperrors.ErrCodeInvalidCredentials, "current password is incorrect")
)

// Service implements profile self-service and admin account
// operations.
type Service struct {
	repo           Repository
	hasher         login.PasswordHasher
	sessionService *sessions.Service
}

func NewService(repo Repository, hasher login.PasswordHasher, sessionService *sessions.Service) *Service {
	return &Service{
		repo:           repo,
		hasher:         hasher,
		sessionService: sessionService,
	}
}

func (s *Service) GetAccount(ctx context.Context, id int64) (Account, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountMissing) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to look up account")
	}
	return account, nil
}

// UpdateProfile applies username and email changes for the account
// itself. It reports whether anything actually changed so the caller
// can distinguish a no-op request.
func (s *Service) UpdateProfile(ctx context.Context, id int64, username, email string) (Account, bool, error) {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return Account{}, false, err
	}

	params := UpdateParams{}
	if username != "" && username != account.Username {
		params.Username = &username
	}
	if email != "" && email != account.Email {
		params.Email = &email
	}
	if params.Username == nil && params.Email == nil {
		return account, false, nil
	}

	if err := s.repo.Update(ctx, id, params); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return Account{}, false, ErrUsernameTaken
		}
		return Account{}, false, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update account")
	}

	updated, err := s.GetAccount(ctx, id)
	if err != nil {
		return Account{}, false, err
	}
	return updated, true, nil
}

// ChangePassword verifies the current password before setting the new
// one, then revokes every session the account holds.
func (s *Service) ChangePassword(ctx context.Context, id int64, currentPassword, newPassword string) error {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to verify password")
	}
	if !ok {
		return ErrWrongPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to hash new password")
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update password")
	}

	if err := s.sessionService.RevokeAllForAccount(ctx, id); err != nil {
		slog.Error("Failed to revoke sessions after password change", "accountId", id, "err", err)
	}
	return nil
}

// DeleteAccount removes the account and revokes its sessions. Role
// assignments and reset tokens cascade at the store.
func (s *Service) DeleteAccount(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrAccountMissing) {
			return ErrAccountNotFound
		}
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to delete account")
	}
	if err := s.sessionService.RevokeAllForAccount(ctx, id); err != nil {
		slog.Error("Failed to revoke sessions after account deletion", "accountId", id, "err", err)
	}
	return nil
}

// FindAccounts lists all accounts. An empty store reports ErrNoAccounts.
func (s *Service) FindAccounts(ctx context.Context) ([]Account, error) {
	accounts, err := s.repo.FindAccounts(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list accounts")
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	return accounts, nil
}

func (s *Service) FindAccountsWithRoles(ctx context.Context) ([]AccountWithRoles, error) {
	accounts, err := s.repo.FindAccountsWithRoles(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list accounts with roles")
	}
	return accounts, nil
}

// SetActive enables or disables login for the account.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	err := s.repo.Update(ctx, id, UpdateParams{IsActive: &active})
	if err != nil {
		if errors.Is(err, ErrAccountMissing) {
			return ErrAccountNotFound
		}
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update account status")
	}
	if !active {
		if err := s.sessionService.RevokeAllForAccount(ctx, id); err != nil {
			slog.Error("Failed to revoke sessions after disabling account", "accountId", id, "err", err)
		}
	}
	return nil
}

// AdminUpdate applies an admin-initiated change to any account.
func (s *Service) AdminUpdate(ctx context.Context, id int64, params UpdateParams) (Account, error) {
	if err := s.repo.Update(ctx, id, params); err != nil {
		switch {
		case errors.Is(err, ErrAccountMissing):
			return Account{}, ErrAccountNotFound
		case errors.Is(err, ErrDuplicateUsername):
			return Account{}, ErrUsernameTaken
		}
		return Account{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update account")
	}
	if params.IsActive != nil && !*params.IsActive {
		if err := s.sessionService.RevokeAllForAccount(ctx, id); err != nil {
			slog.Error("Failed to revoke sessions after disabling account", "accountId", id, "err", err)
		}
	}
	return s.GetAccount(ctx, id)
}
