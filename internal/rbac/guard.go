package rbac

import (
	"slices"

	"github.com/harborchat/harbor/internal/shared"
)

// Guard decisions protect the last-admin invariant: the system must never
// reach a state with zero active users holding the admin role.

// AdminTarget describes the user a mutation is aimed at.
type AdminTarget struct {
	ID       int64
	Roles    []string
	IsActive bool
}

// IsAdmin reports whether the target currently holds the admin role.
func (t AdminTarget) IsAdmin() bool {
	return slices.Contains(t.Roles, shared.RoleAdmin)
}

// RoleChangeAllowed decides whether the target's roles may be replaced with
// newRoles. activeAdmins is the count of active users holding admin in the
// full user population, including the target.
func RoleChangeAllowed(target AdminTarget, newRoles []string, activeAdmins int) Decision {
	if len(newRoles) == 0 {
		return Deny("a user must keep at least one role")
	}
	removingAdmin := target.IsActive && target.IsAdmin() && !slices.Contains(newRoles, shared.RoleAdmin)
	if removingAdmin && activeAdmins <= 1 {
		return Deny("cannot remove admin role from the last active admin")
	}
	return Allow()
}

// DeactivationAllowed decides whether the target may be deactivated.
// Self-deactivation is always denied, independent of admin count.
// otherActiveAdmins counts active admins excluding the target.
func DeactivationAllowed(target AdminTarget, requestingUserID int64, otherActiveAdmins int) Decision {
	if target.ID == requestingUserID {
		return Deny("cannot deactivate your own account")
	}
	if target.IsActive && target.IsAdmin() && otherActiveAdmins == 0 {
		return Deny("cannot deactivate the last active admin")
	}
	return Allow()
}
