package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoleChangeAllowed(t *testing.T) {
	admin := AdminTarget{ID: 1, Roles: []string{"admin", "member"}, IsActive: true}

	t.Run("denies empty role set", func(t *testing.T) {
		decision := RoleChangeAllowed(admin, nil, 2)
		require.False(t, decision.Allowed)
		require.Contains(t, decision.Reason, "at least one role")
	})

	t.Run("denies stripping admin from the last admin", func(t *testing.T) {
		decision := RoleChangeAllowed(admin, []string{"member"}, 1)
		require.False(t, decision.Allowed)
		require.Contains(t, decision.Reason, "last active admin")
	})

	t.Run("allows stripping admin when another admin remains", func(t *testing.T) {
		require.True(t, RoleChangeAllowed(admin, []string{"member"}, 2).Allowed)
	})

	t.Run("allows change that keeps admin", func(t *testing.T) {
		require.True(t, RoleChangeAllowed(admin, []string{"admin"}, 1).Allowed)
	})

	t.Run("inactive admin does not count against the invariant", func(t *testing.T) {
		inactive := AdminTarget{ID: 2, Roles: []string{"admin"}, IsActive: false}
		require.True(t, RoleChangeAllowed(inactive, []string{"member"}, 1).Allowed)
	})
}

func TestDeactivationAllowed(t *testing.T) {
	admin := AdminTarget{ID: 1, Roles: []string{"admin"}, IsActive: true}
	member := AdminTarget{ID: 2, Roles: []string{"member"}, IsActive: true}

	t.Run("self-deactivation always denied", func(t *testing.T) {
		// Even with other admins around, acting on yourself is refused.
		decision := DeactivationAllowed(admin, 1, 5)
		require.False(t, decision.Allowed)
		require.Contains(t, decision.Reason, "own account")
	})

	t.Run("denies removing the last active admin", func(t *testing.T) {
		decision := DeactivationAllowed(admin, 99, 0)
		require.False(t, decision.Allowed)
		require.Contains(t, decision.Reason, "last active admin")
	})

	t.Run("allows when another admin remains", func(t *testing.T) {
		require.True(t, DeactivationAllowed(admin, 99, 1).Allowed)
	})

	t.Run("non-admin target never trips the invariant", func(t *testing.T) {
		require.True(t, DeactivationAllowed(member, 99, 0).Allowed)
	})
}
