package shared

// Core platform permissions.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"

	PermChannelsManage = "channels.manage"
	PermMessagesManage = "messages.manage"
	PermFilesUpload    = "files.upload"

	PermAdminBackup = "admin.backup"
)

// RoleAdmin is the role name protected by the last-admin invariant.
const RoleAdmin = "admin"

// DefaultChannelKey is the channel-permission entry every role must carry.
// Per-channel lookups fall back to it when no specific entry exists.
const DefaultChannelKey = "default"

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermRolesView,
		PermRolesEdit,
		PermChannelsManage,
		PermMessagesManage,
		PermFilesUpload,
		PermAdminBackup,
	}
}
