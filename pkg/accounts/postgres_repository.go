package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, username, COALESCE(email, ''), password_hash, is_active, created_at`

func scanAccount(row pgx.Row) (Account, error) {
	var account Account
	err := row.Scan(&account.ID, &account.Username, &account.Email,
		&account.PasswordHash, &account.IsActive, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountMissing
		}
		return Account{}, fmt.Errorf("scanning account: %w", err)
	}
	return account, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanAccount(row)
}

func (r *PostgresRepository) FindAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *PostgresRepository) FindAccountsWithRoles(ctx context.Context) ([]AccountWithRoles, error) {
	rows, err := r.db.Query(ctx, `
		SELECT u.id, u.username, COALESCE(u.email, ''), u.password_hash, u.is_active, u.created_at,
			COALESCE(array_agg(r.name ORDER BY r.id) FILTER (WHERE r.name IS NOT NULL), '{}')
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		LEFT JOIN roles r ON r.id = ur.role_id
		GROUP BY u.id
		ORDER BY u.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying accounts with roles: %w", err)
	}
	defer rows.Close()

	var accounts []AccountWithRoles
	for rows.Next() {
		var account AccountWithRoles
		err := rows.Scan(&account.ID, &account.Username, &account.Email,
			&account.PasswordHash, &account.IsActive, &account.CreatedAt, &account.Roles)
		if err != nil {
			return nil, fmt.Errorf("scanning account with roles: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, id int64, params UpdateParams) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET username = COALESCE($2, username),
			email = COALESCE(NULLIF($3, ''), email),
			is_active = COALESCE($4, is_active)
		WHERE id = $1
	`, id, params.Username, params.Email, params.IsActive)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("updating account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountMissing
	}
	return nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET password_hash = $2
		WHERE id = $1
	`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountMissing
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM users
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountMissing
	}
	return nil
}
