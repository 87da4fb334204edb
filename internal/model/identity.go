package model

import "time"

// IdentityID is the opaque authenticated identity of a connection
type IdentityID string

// Identity is a participant known to the identity provider
type Identity struct {
	ID          IdentityID
	DisplayName string
	IsGuest     bool // true for identities without credentials
	CreatedAt   time.Time
}

// Credential holds login data for a registered identity.
// Stored separately from Identity so the hash is only loaded on login.
type Credential struct {
	IdentityID   IdentityID
	Username     string // immutable
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
