package login

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLoginRepository implements LoginRepository using PostgreSQL
type PostgresLoginRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresLoginRepository creates a new PostgreSQL login repository
func NewPostgresLoginRepository(pool *pgxpool.Pool) *PostgresLoginRepository {
	return &PostgresLoginRepository{pool: pool}
}

const credentialsColumns = `id, username, COALESCE(email, ''), password_hash, is_active, created_at`

// FindByUsername finds an account by exact username
func (r *PostgresLoginRepository) FindByUsername(ctx context.Context, username string) (Credentials, error) {
	query := `SELECT ` + credentialsColumns + ` FROM users WHERE username = $1`
	return r.scanCredentials(r.pool.QueryRow(ctx, query, username))
}

// FindByEmail finds an account by email
func (r *PostgresLoginRepository) FindByEmail(ctx context.Context, email string) (Credentials, error) {
	query := `SELECT ` + credentialsColumns + ` FROM users WHERE email = $1`
	return r.scanCredentials(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresLoginRepository) scanCredentials(row pgx.Row) (Credentials, error) {
	var creds Credentials
	err := row.Scan(
		&creds.AccountID,
		&creds.Username,
		&creds.Email,
		&creds.PasswordHash,
		&creds.IsActive,
		&creds.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credentials{}, ErrAccountNotFound
		}
		return Credentials{}, fmt.Errorf("failed to load account: %w", err)
	}
	return creds, nil
}

// CreateAccount inserts a new account row
func (r *PostgresLoginRepository) CreateAccount(ctx context.Context, arg CreateAccountParams) (int64, error) {
	query := `
		INSERT INTO users (username, password_hash, email, is_active, created_at)
		VALUES ($1, $2, NULLIF($3, ''), TRUE, NOW())
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query, arg.Username, arg.PasswordHash, arg.Email).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, ErrDuplicateUsername
		}
		return 0, fmt.Errorf("failed to create account: %w", err)
	}
	return id, nil
}

// DeleteLiveResetTokens removes unused, unexpired tokens for the account
func (r *PostgresLoginRepository) DeleteLiveResetTokens(ctx context.Context, accountID int64) error {
	query := `
		DELETE FROM password_reset_tokens
		WHERE user_id = $1 AND NOT is_used AND expires_at > NOW()
	`
	if _, err := r.pool.Exec(ctx, query, accountID); err != nil {
		return fmt.Errorf("failed to delete live reset tokens: %w", err)
	}
	return nil
}

// CreateResetToken inserts a new reset token row
func (r *PostgresLoginRepository) CreateResetToken(ctx context.Context, arg CreateResetTokenParams) (int64, error) {
	query := `
		INSERT INTO password_reset_tokens (user_id, token, created_at, expires_at, is_used)
		VALUES ($1, $2, NOW(), $3, FALSE)
		RETURNING id
	`
	var id int64
	if err := r.pool.QueryRow(ctx, query, arg.AccountID, arg.Token, arg.ExpiresAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create reset token: %w", err)
	}
	return id, nil
}

// FindResetToken loads the newest token matching the account+token pair
func (r *PostgresLoginRepository) FindResetToken(ctx context.Context, accountID int64, token string) (ResetToken, error) {
	query := `
		SELECT id, user_id, token, created_at, expires_at, is_used
		FROM password_reset_tokens
		WHERE user_id = $1 AND token = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var entry ResetToken
	err := r.pool.QueryRow(ctx, query, accountID, token).Scan(
		&entry.ID,
		&entry.AccountID,
		&entry.Token,
		&entry.CreatedAt,
		&entry.ExpiresAt,
		&entry.IsUsed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ResetToken{}, ErrResetTokenNotFound
		}
		return ResetToken{}, fmt.Errorf("failed to load reset token: %w", err)
	}
	return entry, nil
}

// RedeemResetToken updates the password hash and marks the token used in
// one transaction. Neither change lands without the other.
func (r *PostgresLoginRepository) RedeemResetToken(ctx context.Context, tokenID int64, accountID int64, passwordHash string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, accountID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	tag, err = tx.Exec(ctx, `UPDATE password_reset_tokens SET is_used = TRUE WHERE id = $1 AND NOT is_used`, tokenID)
	if err != nil {
		return fmt.Errorf("failed to mark reset token used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrResetTokenNotFound
	}

	return tx.Commit(ctx)
}
