package channels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harborchat/harbor/internal/rbac"
	"github.com/harborchat/harbor/internal/shared"
)

type memoryChannelRepo struct {
	channels map[int64]Channel
	nextID   int64
}

func newMemoryChannelRepo() *memoryChannelRepo {
	return &memoryChannelRepo{channels: make(map[int64]Channel)}
}

func (r *memoryChannelRepo) List(ctx context.Context) ([]Channel, error) {
	out := make([]Channel, 0, len(r.channels))
	for id := int64(1); id <= r.nextID; id++ {
		if ch, ok := r.channels[id]; ok {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (r *memoryChannelRepo) GetByID(ctx context.Context, id int64) (*Channel, error) {
	ch, ok := r.channels[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &ch, nil
}

func (r *memoryChannelRepo) Create(ctx context.Context, ch Channel) (*Channel, error) {
	r.nextID++
	ch.ID = r.nextID
	r.channels[ch.ID] = ch
	return &ch, nil
}

func (r *memoryChannelRepo) Update(ctx context.Context, ch Channel) (*Channel, error) {
	existing, ok := r.channels[ch.ID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	existing.Topic = ch.Topic
	existing.Visibility = ch.Visibility
	existing.AllowedRoles = ch.AllowedRoles
	r.channels[ch.ID] = existing
	return &existing, nil
}

func (r *memoryChannelRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.channels[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.channels, id)
	return nil
}

func seedService(t *testing.T) (*Service, *memoryChannelRepo) {
	t.Helper()
	repo := newMemoryChannelRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, "general", "chatter", VisibilityPublic, []string{"member"}, 1)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "ops", "incidents", VisibilityPrivate, []string{"admin", "sre"}, 1)
	require.NoError(t, err)
	return svc, repo
}

func TestCanAccessPublicChannelGrantsEveryAccessType(t *testing.T) {
	svc, _ := seedService(t)
	ctx := context.Background()

	for _, access := range []rbac.AccessType{rbac.AccessRead, rbac.AccessWrite, rbac.AccessManage} {
		ok, err := svc.CanAccess(ctx, 1, []string{"guest"}, access)
		require.NoError(t, err)
		require.True(t, ok, "public channel should grant %s", access)
	}
}

func TestCanAccessPrivateChannelRequiresRoleOverlap(t *testing.T) {
	svc, _ := seedService(t)
	ctx := context.Background()

	ok, err := svc.CanAccess(ctx, 2, []string{"member", "sre"}, rbac.AccessRead)
	require.NoError(t, err)
	require.True(t, ok)

	// Membership grants all access types, not just read.
	ok, err = svc.CanAccess(ctx, 2, []string{"sre"}, rbac.AccessManage)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.CanAccess(ctx, 2, []string{"member"}, rbac.AccessRead)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanAccessMissingChannelIsNotFound(t *testing.T) {
	svc, _ := seedService(t)
	ctx := context.Background()

	ok, err := svc.CanAccess(ctx, 99, []string{"admin"}, rbac.AccessRead)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.False(t, ok)

	ok, err = svc.CanAccess(ctx, 0, []string{"admin"}, rbac.AccessRead)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.False(t, ok)

	ok, err = svc.CanAccess(ctx, 1, []string{"admin"}, rbac.AccessType("owner"))
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.False(t, ok)
}

func TestListFiltersInvisiblePrivateChannels(t *testing.T) {
	svc, _ := seedService(t)
	ctx := context.Background()

	visible, err := svc.List(ctx, []string{"member"})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, "general", visible[0].Name)

	visible, err = svc.List(ctx, []string{"member", "admin"})
	require.NoError(t, err)
	require.Len(t, visible, 2)
}

func TestGetDeniesNonMember(t *testing.T) {
	svc, _ := seedService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, 2, []string{"member"})
	require.ErrorIs(t, err, shared.ErrForbidden)

	ch, err := svc.Get(ctx, 2, []string{"admin"})
	require.NoError(t, err)
	require.Equal(t, "ops", ch.Name)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := seedService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "  ", "", VisibilityPublic, []string{"member"}, 1)
	require.Error(t, err)

	_, err = svc.Create(ctx, "dev", "", Visibility("secret"), []string{"member"}, 1)
	require.Error(t, err)

	_, err = svc.Create(ctx, "dev", "", VisibilityPrivate, nil, 1)
	require.Error(t, err)
}
