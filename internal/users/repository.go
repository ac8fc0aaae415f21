package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborchat/harbor/internal/shared"
)

// ErrDuplicateUsername indicates a username collision.
var ErrDuplicateUsername = errors.New("users: username already exists")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, display_name, credential_hash, roles, is_active, created_at, updated_at`

// ListUsers returns all users ordered by id.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

// ListActive returns all active users. The admin-count checks in the service
// layer run over this population.
func (r *Repository) ListActive(ctx context.Context) ([]User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE is_active ORDER BY id`)
}

// GetByID fetches one user.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByUsername fetches one user by normalized username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, NormalizeUsername(username))
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, user User) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, display_name, credential_hash, roles, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		user.Username, user.DisplayName, user.CredentialHash, user.Roles, user.IsActive)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("users: create: %w", err)
	}
	return created, nil
}

// UpdateRoles replaces the user's role set.
func (r *Repository) UpdateRoles(ctx context.Context, id int64, roles []string) (*User, error) {
	return r.queryUser(ctx,
		`UPDATE users SET roles = $2, updated_at = now() WHERE id = $1 RETURNING `+userColumns,
		id, roles)
}

// SetActive flips the soft-delete flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) (*User, error) {
	return r.queryUser(ctx,
		`UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1 RETURNING `+userColumns,
		id, active)
}

// UpdateDisplayName changes the user's display name.
func (r *Repository) UpdateDisplayName(ctx context.Context, id int64, displayName string) (*User, error) {
	return r.queryUser(ctx,
		`UPDATE users SET display_name = $2, updated_at = now() WHERE id = $1 RETURNING `+userColumns,
		id, displayName)
}

func (r *Repository) queryUsers(ctx context.Context, sql string, args ...any) ([]User, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("users: query: %w", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan: %w", err)
		}
		out = append(out, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: query: %w", err)
	}
	return out, nil
}

func (r *Repository) queryUser(ctx context.Context, sql string, args ...any) (*User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("users: query: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.Username, &user.DisplayName, &user.CredentialHash,
		&user.Roles, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}
