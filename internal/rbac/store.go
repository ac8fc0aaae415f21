package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborchat/harbor/internal/shared"
)

// ErrNotFound indicates that the requested role does not exist.
var ErrNotFound = errors.New("rbac: role not found")

// ErrDuplicateName indicates a role name collision.
var ErrDuplicateName = errors.New("rbac: role name already exists")

// Store provides PostgreSQL backed persistence for role definitions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const roleColumns = `id, name, global_permissions, channel_permissions, created_at, updated_at`

// LoadAll reads every role into a RoleSet keyed by name. Callers hold the set
// for the duration of one request; staleness across requests is acceptable.
func (s *Store) LoadAll(ctx context.Context) (RoleSet, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: load roles: %w", err)
	}
	defer rows.Close()

	set := make(RoleSet)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("rbac: scan role: %w", err)
		}
		set[role.Name] = role
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: load roles: %w", err)
	}
	return set, nil
}

// List returns all roles ordered by name.
func (s *Store) List(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("rbac: scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	return roles, nil
}

// GetByName fetches one role by name.
func (s *Store) GetByName(ctx context.Context, name string) (Role, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, fmt.Errorf("rbac: get role: %w", err)
	}
	return role, nil
}

// Create inserts a new role definition.
func (s *Store) Create(ctx context.Context, role Role) (Role, error) {
	role.Name = strings.TrimSpace(role.Name)
	if role.Name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	normalizeRole(&role)
	row := s.pool.QueryRow(ctx,
		`INSERT INTO roles (name, global_permissions, channel_permissions)
		 VALUES ($1, $2, $3)
		 RETURNING `+roleColumns,
		role.Name, role.GlobalPermissions, role.ChannelPermissions)
	created, err := scanRole(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrDuplicateName
		}
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	return created, nil
}

// Update replaces the permission maps of an existing role.
func (s *Store) Update(ctx context.Context, role Role) (Role, error) {
	normalizeRole(&role)
	row := s.pool.QueryRow(ctx,
		`UPDATE roles
		 SET global_permissions = $2, channel_permissions = $3, updated_at = now()
		 WHERE name = $1
		 RETURNING `+roleColumns,
		role.Name, role.GlobalPermissions, role.ChannelPermissions)
	updated, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, fmt.Errorf("rbac: update role: %w", err)
	}
	return updated, nil
}

// Delete removes a role by name. Returns ErrNotFound if nothing was deleted.
func (s *Store) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("rbac: delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.GlobalPermissions, &role.ChannelPermissions, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return Role{}, err
	}
	normalizeRole(&role)
	return role, nil
}

// normalizeRole enforces the invariant that every role carries a default
// channel-permission entry and non-nil permission maps.
func normalizeRole(role *Role) {
	if role.GlobalPermissions == nil {
		role.GlobalPermissions = make(map[string]bool)
	}
	if role.ChannelPermissions == nil {
		role.ChannelPermissions = make(map[string]ChannelPermission)
	}
	if _, ok := role.ChannelPermissions[shared.DefaultChannelKey]; !ok {
		role.ChannelPermissions[shared.DefaultChannelKey] = ChannelPermission{}
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
