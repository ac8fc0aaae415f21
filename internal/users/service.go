package users

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/harborchat/harbor/internal/rbac"
	"github.com/harborchat/harbor/internal/shared"
)

// ErrInvariant wraps a denied guard decision; the reason is user-visible.
var ErrInvariant = errors.New("users: invariant violation")

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	ListActive(ctx context.Context) ([]User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, user User) (*User, error)
	UpdateRoles(ctx context.Context, id int64, roles []string) (*User, error)
	SetActive(ctx context.Context, id int64, active bool) (*User, error)
	UpdateDisplayName(ctx context.Context, id int64, displayName string) (*User, error)
}

// SessionRevoker invalidates open sessions when an account is deactivated.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID int64) error
}

// Service handles user management business rules, including the last-admin
// and self-deactivation invariants.
type Service struct {
	repo     RepositoryPort
	roles    rbac.RoleLoader
	sessions SessionRevoker
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, roles rbac.RoleLoader, sessions SessionRevoker) *Service {
	return &Service{repo: repo, roles: roles, sessions: sessions}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser fetches one user.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateUser registers a new account with a bcrypt credential hash.
func (s *Service) CreateUser(ctx context.Context, username, displayName, password string, roleNames []string) (*User, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username required", ErrInvariant)
	}
	if len(roleNames) == 0 {
		return nil, fmt.Errorf("%w: a user needs at least one role", ErrInvariant)
	}
	if err := s.validateRoles(ctx, roleNames); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = username
	}
	return s.repo.Create(ctx, User{
		Username:       username,
		DisplayName:    strings.TrimSpace(displayName),
		CredentialHash: string(hash),
		Roles:          dedupe(roleNames),
		IsActive:       true,
	})
}

// UpdateRoles replaces the target's role set after checking the last-admin invariant.
func (s *Service) UpdateRoles(ctx context.Context, targetID int64, newRoles []string) (*User, error) {
	newRoles = dedupe(newRoles)
	if err := s.validateRoles(ctx, newRoles); err != nil {
		return nil, err
	}
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	admins, err := s.countActiveAdmins(ctx, 0)
	if err != nil {
		return nil, err
	}
	decision := rbac.RoleChangeAllowed(adminTarget(target), newRoles, admins)
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrInvariant, decision.Reason)
	}
	return s.repo.UpdateRoles(ctx, targetID, newRoles)
}

// Deactivate soft-deletes the target account. Self-deactivation is always
// denied; deactivating the last active admin is denied.
func (s *Service) Deactivate(ctx context.Context, targetID, requestingID int64) (*User, error) {
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	otherAdmins, err := s.countActiveAdmins(ctx, targetID)
	if err != nil {
		return nil, err
	}
	decision := rbac.DeactivationAllowed(adminTarget(target), requestingID, otherAdmins)
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrInvariant, decision.Reason)
	}
	updated, err := s.repo.SetActive(ctx, targetID, false)
	if err != nil {
		return nil, err
	}
	if s.sessions != nil {
		_ = s.sessions.RevokeUser(ctx, targetID)
	}
	return updated, nil
}

// Reactivate restores a soft-deleted account.
func (s *Service) Reactivate(ctx context.Context, targetID int64) (*User, error) {
	return s.repo.SetActive(ctx, targetID, true)
}

// UpdateDisplayName changes the target's display name.
func (s *Service) UpdateDisplayName(ctx context.Context, targetID int64, displayName string) (*User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name required", ErrInvariant)
	}
	return s.repo.UpdateDisplayName(ctx, targetID, displayName)
}

// countActiveAdmins counts active users holding the admin role, excluding
// excludeID when non-zero.
func (s *Service) countActiveAdmins(ctx context.Context, excludeID int64) (int, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, u := range active {
		if u.ID == excludeID {
			continue
		}
		if slices.Contains(u.Roles, shared.RoleAdmin) {
			count++
		}
	}
	return count, nil
}

// validateRoles rejects role names that do not resolve to stored roles.
// Assignment is stricter than permission checks, which skip unknown names.
func (s *Service) validateRoles(ctx context.Context, roleNames []string) error {
	set, err := s.roles.LoadAll(ctx)
	if err != nil {
		return err
	}
	for _, name := range roleNames {
		if _, ok := set[name]; !ok {
			return fmt.Errorf("%w: unknown role %q", ErrInvariant, name)
		}
	}
	return nil
}

func adminTarget(u *User) rbac.AdminTarget {
	return rbac.AdminTarget{ID: u.ID, Roles: u.Roles, IsActive: u.IsActive}
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
