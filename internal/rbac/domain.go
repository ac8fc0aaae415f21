package rbac

import "time"

// AccessType names the kind of channel access being requested.
type AccessType string

const (
	AccessRead   AccessType = "read"
	AccessWrite  AccessType = "write"
	AccessManage AccessType = "manage"
)

// Valid reports whether the access type is one of read/write/manage.
func (a AccessType) Valid() bool {
	switch a {
	case AccessRead, AccessWrite, AccessManage:
		return true
	}
	return false
}

// ChannelPermission is a role's read/write/manage grant for one channel.
type ChannelPermission struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Manage bool `json:"manage"`
}

// Allows returns the flag for the requested access type.
func (p ChannelPermission) Allows(access AccessType) bool {
	switch access {
	case AccessRead:
		return p.Read
	case AccessWrite:
		return p.Write
	case AccessManage:
		return p.Manage
	}
	return false
}

// Role bundles global permission flags with channel-scoped overrides.
// GlobalPermissions entries default to absent=false: unset means denied.
// ChannelPermissions always contains a "default" entry; per-channel lookup
// falls back to it when no specific entry exists.
type Role struct {
	ID                 int64
	Name               string
	GlobalPermissions  map[string]bool
	ChannelPermissions map[string]ChannelPermission
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RoleSet indexes roles by name for request-scoped permission resolution.
type RoleSet map[string]Role

// Decision is the result of an invariant check on a role or account mutation.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow returns a permitting decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denying decision with a human-readable reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}
