package channels

import "time"

// Visibility controls who may enter a channel.
type Visibility string

const (
	// VisibilityPublic grants read and write to every authenticated principal,
	// regardless of the allowed-roles list.
	VisibilityPublic Visibility = "public"
	// VisibilityPrivate restricts access to principals holding at least one
	// role from AllowedRoles.
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether the visibility is a known value.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Channel represents a chat room. AllowedRoles is non-empty for persisted
// channels; for public channels it is informational only.
type Channel struct {
	ID           int64
	Name         string
	Topic        string
	Visibility   Visibility
	AllowedRoles []string
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
