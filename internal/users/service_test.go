package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/harborchat/harbor/internal/rbac"
	"github.com/harborchat/harbor/internal/shared"
)

type memoryUserRepo struct {
	users  map[int64]User
	nextID int64
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[int64]User)}
}

func (r *memoryUserRepo) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(r.users))
	for id := int64(1); id <= r.nextID; id++ {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memoryUserRepo) ListActive(ctx context.Context) ([]User, error) {
	all, _ := r.ListUsers(ctx)
	active := make([]User, 0, len(all))
	for _, u := range all {
		if u.IsActive {
			active = append(active, u)
		}
	}
	return active, nil
}

func (r *memoryUserRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &u, nil
}

func (r *memoryUserRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryUserRepo) Create(ctx context.Context, user User) (*User, error) {
	if _, err := r.GetByUsername(ctx, user.Username); err == nil {
		return nil, ErrDuplicateUsername
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = user
	return &user, nil
}

func (r *memoryUserRepo) UpdateRoles(ctx context.Context, id int64, roles []string) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	u.Roles = roles
	r.users[id] = u
	return &u, nil
}

func (r *memoryUserRepo) SetActive(ctx context.Context, id int64, active bool) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	u.IsActive = active
	r.users[id] = u
	return &u, nil
}

func (r *memoryUserRepo) UpdateDisplayName(ctx context.Context, id int64, displayName string) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	u.DisplayName = displayName
	r.users[id] = u
	return &u, nil
}

type staticRoles rbac.RoleSet

func (s staticRoles) LoadAll(ctx context.Context) (rbac.RoleSet, error) {
	return rbac.RoleSet(s), nil
}

type recordingRevoker struct {
	revoked []int64
}

func (r *recordingRevoker) RevokeUser(ctx context.Context, userID int64) error {
	r.revoked = append(r.revoked, userID)
	return nil
}

func knownRoles() staticRoles {
	return staticRoles{
		"admin":  rbac.Role{Name: "admin"},
		"member": rbac.Role{Name: "member"},
	}
}

func seedUsers(t *testing.T) (*Service, *memoryUserRepo, *recordingRevoker) {
	t.Helper()
	repo := newMemoryUserRepo()
	revoker := &recordingRevoker{}
	svc := NewService(repo, knownRoles(), revoker)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "root", "Root", "s3cret", []string{"admin"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, "alice", "Alice", "s3cret", []string{"member"})
	require.NoError(t, err)
	return svc, repo, revoker
}

func TestCreateUserHashesPasswordAndNormalizesUsername(t *testing.T) {
	svc, repo, _ := seedUsers(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, "  BOB Á ", "", "hunter2", []string{"member", "member"})
	require.NoError(t, err)
	require.Equal(t, "bob á", created.Username)
	require.Equal(t, created.Username, created.DisplayName)
	require.Equal(t, []string{"member"}, created.Roles)
	require.True(t, created.IsActive)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.CredentialHash), []byte("hunter2")))

	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", stored.CredentialHash)
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc, _, _ := seedUsers(t)

	_, err := svc.CreateUser(context.Background(), "carol", "Carol", "pw", []string{"owner"})
	require.ErrorIs(t, err, ErrInvariant)
}

func TestUpdateRolesProtectsLastAdmin(t *testing.T) {
	svc, repo, _ := seedUsers(t)
	ctx := context.Background()

	_, err := svc.UpdateRoles(ctx, 1, []string{"member"})
	require.ErrorIs(t, err, ErrInvariant)

	// A second active admin lifts the restriction.
	_, err = svc.CreateUser(ctx, "backup-admin", "", "pw", []string{"admin"})
	require.NoError(t, err)

	updated, err := svc.UpdateRoles(ctx, 1, []string{"member"})
	require.NoError(t, err)
	require.Equal(t, []string{"member"}, updated.Roles)

	stored, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"member"}, stored.Roles)
}

func TestUpdateRolesRejectsEmptySet(t *testing.T) {
	svc, _, _ := seedUsers(t)

	_, err := svc.UpdateRoles(context.Background(), 2, []string{" ", ""})
	require.ErrorIs(t, err, ErrInvariant)
}

func TestDeactivateDeniesSelfEvenWithOtherAdmins(t *testing.T) {
	svc, _, _ := seedUsers(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "second-admin", "", "pw", []string{"admin"})
	require.NoError(t, err)

	_, err = svc.Deactivate(ctx, 1, 1)
	require.ErrorIs(t, err, ErrInvariant)
}

func TestDeactivateProtectsLastAdmin(t *testing.T) {
	svc, _, _ := seedUsers(t)

	_, err := svc.Deactivate(context.Background(), 1, 2)
	require.ErrorIs(t, err, ErrInvariant)
}

func TestDeactivateRevokesSessions(t *testing.T) {
	svc, repo, revoker := seedUsers(t)
	ctx := context.Background()

	updated, err := svc.Deactivate(ctx, 2, 1)
	require.NoError(t, err)
	require.False(t, updated.IsActive)
	require.Equal(t, []int64{2}, revoker.revoked)

	stored, err := repo.GetByID(ctx, 2)
	require.NoError(t, err)
	require.False(t, stored.IsActive)
}

func TestReactivate(t *testing.T) {
	svc, _, _ := seedUsers(t)
	ctx := context.Background()

	_, err := svc.Deactivate(ctx, 2, 1)
	require.NoError(t, err)

	restored, err := svc.Reactivate(ctx, 2)
	require.NoError(t, err)
	require.True(t, restored.IsActive)
}

func TestInactiveAdminsDoNotCountTowardInvariant(t *testing.T) {
	svc, repo, _ := seedUsers(t)
	ctx := context.Background()

	// A deactivated admin exists, but the only *active* admin stays protected.
	_, err := svc.CreateUser(ctx, "old-admin", "", "pw", []string{"admin"})
	require.NoError(t, err)
	_, err = repo.SetActive(ctx, 3, false)
	require.NoError(t, err)

	_, err = svc.UpdateRoles(ctx, 1, []string{"member"})
	require.ErrorIs(t, err, ErrInvariant)

	_, err = svc.Deactivate(ctx, 1, 2)
	require.ErrorIs(t, err, ErrInvariant)
}
