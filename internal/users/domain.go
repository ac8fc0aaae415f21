package users

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// User represents a chat account. Accounts are soft-deleted via IsActive;
// Roles is never empty for a persisted user.
type User struct {
	ID             int64
	Username       string
	DisplayName    string
	CredentialHash string
	Roles          []string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NormalizeUsername canonicalizes a username for storage and lookup.
func NormalizeUsername(name string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(name)))
}
