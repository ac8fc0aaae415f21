package rbac

import "github.com/harborchat/harbor/internal/shared"

// Engine answers permission questions over a request-scoped RoleSet.
// Every check degrades safe: unknown roles, permissions, or access types
// resolve to denied, never to granted and never an error.

// HasPermission reports whether the role grants the named global permission.
// Only an explicit true entry grants; absent entries deny.
func HasPermission(role Role, permission string) bool {
	return role.GlobalPermissions[permission]
}

// PrincipalHasPermission reports whether any of the principal's roles grants
// the permission. Role names that do not resolve contribute nothing.
func PrincipalHasPermission(set RoleSet, roleNames []string, permission string) bool {
	for _, name := range roleNames {
		role, ok := set[name]
		if !ok {
			continue
		}
		if HasPermission(role, permission) {
			return true
		}
	}
	return false
}

// PrincipalHasAllPermissions reports whether the union of grants across all
// resolved roles covers every required permission. Unlike the single-permission
// check this aggregates before checking, so partial grants spread over several
// roles can satisfy the full requirement.
func PrincipalHasAllPermissions(set RoleSet, roleNames []string, permissions []string) bool {
	granted := make(map[string]struct{})
	for _, name := range roleNames {
		role, ok := set[name]
		if !ok {
			continue
		}
		for perm, allowed := range role.GlobalPermissions {
			if allowed {
				granted[perm] = struct{}{}
			}
		}
	}
	for _, perm := range permissions {
		if _, ok := granted[perm]; !ok {
			return false
		}
	}
	return true
}

// PrincipalHasAnyPermission reports whether any resolved role grants any one
// of the listed permissions.
func PrincipalHasAnyPermission(set RoleSet, roleNames []string, permissions []string) bool {
	for _, name := range roleNames {
		role, ok := set[name]
		if !ok {
			continue
		}
		for _, perm := range permissions {
			if HasPermission(role, perm) {
				return true
			}
		}
	}
	return false
}

// HasChannelAccess resolves the role's channel-scoped permission for the given
// channel, falling back to the role's default entry when no specific entry
// exists. This is independent of the channel-level allowed-roles check; the two
// mechanisms are deliberately not composed.
func HasChannelAccess(set RoleSet, roleName, channelID string, access AccessType) bool {
	role, ok := set[roleName]
	if !ok || !access.Valid() {
		return false
	}
	if perm, ok := role.ChannelPermissions[channelID]; ok {
		return perm.Allows(access)
	}
	return role.ChannelPermissions[shared.DefaultChannelKey].Allows(access)
}
