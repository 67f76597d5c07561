package role

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

func (r *PostgresRepository) FindRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name
		FROM roles
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *PostgresRepository) FindRoleByName(ctx context.Context, name string) (Role, error) {
	var role Role
	err := r.db.QueryRow(ctx, `
		SELECT id, name
		FROM roles
		WHERE name = $1
	`, name).Scan(&role.ID, &role.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrRoleMissing
		}
		return Role{}, fmt.Errorf("querying role by name: %w", err)
	}
	return role, nil
}

func (r *PostgresRepository) FindRoleNamesByAccount(ctx context.Context, accountID int64) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying account roles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning role name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *PostgresRepository) AccountExists(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)
	`, accountID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking account existence: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) CreateAssignment(ctx context.Context, accountID, roleID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
	`, accountID, roleID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateAssignment
		}
		return fmt.Errorf("inserting assignment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteAssignment(ctx context.Context, accountID, roleID int64) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM user_roles
		WHERE user_id = $1 AND role_id = $2
	`, accountID, roleID)
	if err != nil {
		return fmt.Errorf("deleting assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentMissing
	}
	return nil
}

func (r *PostgresRepository) EnsureRole(ctx context.Context, name string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO roles (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING
	`, name)
	if err != nil {
		return fmt.Errorf("ensuring role %q: %w", name, err)
	}
	return nil
}
