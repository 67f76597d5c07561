package login

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	errs "github.com/tendant/simple-account/pkg/errors"
	"github.com/tendant/simple-account/pkg/notification"
	"github.com/tendant/simple-account/pkg/role"
	"github.com/tendant/simple-account/pkg/sessions"
)

// Service-level errors, mapped to HTTP statuses by the API layer
var (
	ErrInvalidCredentials = errs.New(errs.ErrCodeInvalidCredentials, "invalid username or password")
	ErrAccountDisabled    = errs.New(errs.ErrCodeAccountDisabled, "account has been disabled")
	ErrUsernameTaken      = errs.New(errs.ErrCodeUsernameTaken, "username already exists")
	ErrNoSuchAccount      = errs.New(errs.ErrCodeAccountNotFound, "account not found")
	ErrTokenInvalid       = errs.New(errs.ErrCodeTokenInvalid, "reset token is invalid or not found")
	ErrTokenAlreadyUsed   = errs.New(errs.ErrCodeTokenAlreadyUsed, "reset token has already been used")
	ErrTokenExpired       = errs.New(errs.ErrCodeTokenExpired, "reset token has expired")
)

// DefaultRoleName is auto-assigned to every new registration
const DefaultRoleName = "User"

const (
	defaultResetTokenExpiry = 1 * time.Hour
	defaultEmailSendTimeout = 10 * time.Second
)

// Identity is an authenticated principal with its role snapshot
type Identity struct {
	AccountID int64
	Username  string
	Roles     []string
}

// Service implements credential authentication, registration and the
// password reset flow.
type Service struct {
	repo             LoginRepository
	hasher           PasswordHasher
	roleService      *role.Service
	sessionService   *sessions.Service
	notifier         *notification.Manager
	resetTokenExpiry time.Duration
	emailSendTimeout time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithResetTokenExpiry overrides the reset token lifetime
func WithResetTokenExpiry(expiry time.Duration) Option {
	return func(s *Service) {
		s.resetTokenExpiry = expiry
	}
}

// WithEmailSendTimeout bounds the wait on the outbound reset email
func WithEmailSendTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.emailSendTimeout = timeout
	}
}

// NewService creates a login service
func NewService(repo LoginRepository, hasher PasswordHasher, roleService *role.Service, sessionService *sessions.Service, notifier *notification.Manager, opts ...Option) *Service {
	s := &Service{
		repo:             repo,
		hasher:           hasher,
		roleService:      roleService,
		sessionService:   sessionService,
		notifier:         notifier,
		resetTokenExpiry: defaultResetTokenExpiry,
		emailSendTimeout: defaultEmailSendTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login validates a username/password pair and resolves the account's
// roles. Unknown usernames and wrong passwords return the same error so
// the response carries no account-existence signal.
func (s *Service) Login(ctx context.Context, username, password string) (Identity, error) {
	creds, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, errs.Wrap(err, errs.ErrCodeInternal, "failed to look up account")
	}

	valid, err := s.hasher.Verify(password, creds.PasswordHash)
	if err != nil {
		return Identity{}, errs.Wrap(err, errs.ErrCodeInternal, "failed to verify password")
	}
	if !valid {
		return Identity{}, ErrInvalidCredentials
	}

	// Credentials are confirmed before the status check, so a disabled
	// account gets the distinguishable message.
	if !creds.IsActive {
		return Identity{}, ErrAccountDisabled
	}

	roles, err := s.roleService.FindRoleNamesByAccount(ctx, creds.AccountID)
	if err != nil {
		return Identity{}, errs.Wrap(err, errs.ErrCodeInternal, "failed to resolve roles")
	}

	return Identity{
		AccountID: creds.AccountID,
		Username:  creds.Username,
		Roles:     roles,
	}, nil
}

// RegisterParams carries the registration input
type RegisterParams struct {
	Username string
	Password string
	Email    string
}

// Register creates an account and assigns the default role. The username
// pre-check is advisory; the unique index is the authoritative defense and
// a lost race still surfaces as ErrUsernameTaken.
func (s *Service) Register(ctx context.Context, params RegisterParams) (int64, error) {
	if _, err := s.repo.FindByUsername(ctx, params.Username); err == nil {
		return 0, ErrUsernameTaken
	} else if !errors.Is(err, ErrAccountNotFound) {
		return 0, errs.Wrap(err, errs.ErrCodeInternal, "failed to look up username")
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return 0, errs.Wrap(err, errs.ErrCodeInternal, "failed to hash password")
	}

	accountID, err := s.repo.CreateAccount(ctx, CreateAccountParams{
		Username:     params.Username,
		PasswordHash: hash,
		Email:        params.Email,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return 0, ErrUsernameTaken
		}
		return 0, errs.Wrap(err, errs.ErrCodeInternal, "failed to create account")
	}

	if err := s.roleService.Grant(ctx, accountID, DefaultRoleName); err != nil {
		slog.Error("Failed to assign default role", "accountId", accountID, "err", err)
		return 0, errs.Wrap(err, errs.ErrCodeInternal, "failed to assign default role")
	}

	return accountID, nil
}

// InitPasswordReset issues a fresh reset token and emails the reset link.
// An unknown email returns nil, and email-send failures are logged and
// swallowed, so the caller's response is identical in every case.
func (s *Service) InitPasswordReset(ctx context.Context, email string) error {
	creds, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			slog.Info("Password reset requested for unknown email")
			return nil
		}
		return errs.Wrap(err, errs.ErrCodeInternal, "failed to look up account by email")
	}

	// At most one live token per account: retire the previous ones first.
	if err := s.repo.DeleteLiveResetTokens(ctx, creds.AccountID); err != nil {
		return errs.Wrap(err, errs.ErrCodeInternal, "failed to invalidate prior reset tokens")
	}

	token, err := generateResetToken()
	if err != nil {
		return errs.Wrap(err, errs.ErrCodeInternal, "failed to generate reset token")
	}

	if _, err := s.repo.CreateResetToken(ctx, CreateResetTokenParams{
		AccountID: creds.AccountID,
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(s.resetTokenExpiry),
	}); err != nil {
		return errs.Wrap(err, errs.ErrCodeInternal, "failed to save reset token")
	}

	// Best effort, bounded wait. A broken or slow mail transport must not
	// fail the request or show through to the caller.
	sendCtx, cancel := context.WithTimeout(ctx, s.emailSendTimeout)
	defer cancel()
	if err := s.sendPasswordResetEmail(sendCtx, creds, token); err != nil {
		slog.Error("Failed to send password reset email", "accountId", creds.AccountID, "err", err)
	}

	return nil
}

// ConfirmPasswordReset redeems a reset token into a password change. The
// hash update and the used-flag flip are applied as one atomic unit.
func (s *Service) ConfirmPasswordReset(ctx context.Context, email, token, newPassword string) error {
	creds, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrNoSuchAccount
		}
		return errs.Wrap(err, errs.ErrCodeInternal, "failed to look up account by email")
	}

	// Match by account+token pair, not token alone, to rule out
	// cross-account confusion.
	entry, err := s.repo.FindResetToken(ctx, creds.AccountID, token)
	if err != nil {
		if errors.Is(err, ErrResetTokenNotFound) {
			return ErrTokenInvalid
		}
		return errs.Wrap(err, errs.ErrCodeInternal, "failed to look up reset token")
	}

	if entry.IsUsed {
		return ErrTokenAlreadyUsed
	}
	if entry.ExpiresAt.Before(time.Now().UTC()) {
		return ErrTokenExpired
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return errs.Wrap(err, errs.ErrCodeInternal, "failed to hash new password")
	}

	if err := s.repo.RedeemResetToken(ctx, entry.ID, creds.AccountID, hash); err != nil {
		return errs.Wrap(err, errs.ErrCodeInternal, "failed to redeem reset token")
	}

	// Sessions issued under the old password are no longer trustworthy.
	if err := s.sessionService.RevokeAllForAccount(ctx, creds.AccountID); err != nil {
		slog.Error("Failed to revoke sessions after password reset", "accountId", creds.AccountID, "err", err)
	}

	return nil
}

func (s *Service) sendPasswordResetEmail(ctx context.Context, creds Credentials, token string) error {
	resetLink := fmt.Sprintf("%s/reset-password?email=%s&token=%s", s.notifier.BaseURL, creds.Email, token)
	return s.notifier.Send(ctx, notification.PasswordResetNotice, notification.NotificationData{
		To: creds.Email,
		Data: map[string]string{
			"Username": creds.Username,
			"Link":     resetLink,
		},
	})
}

// generateResetToken returns 32 random bytes hex-encoded, 256 bits of
// entropy from crypto/rand.
func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
