package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// RoleManager is granted to every auto-provisioned owner.
const RoleManager = "MANAGER"

// PlaceholderCredential is stored for owners created on first write. It is not a valid
// bcrypt hash so password authentication for such owners always fails.
const PlaceholderCredential = "!"

// Owner represents a manager who owns employee records.
// The name doubles as the authenticated principal's name.
type Owner struct {
	OwnerID        uuid.UUID // UUIDv7
	Name           string    // Unique, matches the principal name
	CredentialHash string    // bcrypt hash or PlaceholderCredential
	Roles          []string  // ["MANAGER"]

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasRole returns true if the owner carries the given role label.
func (o *Owner) HasRole(role string) bool {
	return slices.Contains(o.Roles, role)
}

// Clone returns a deep copy so callers can't mutate stored state.
func (o *Owner) Clone() *Owner {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Roles = slices.Clone(o.Roles)
	return &clone
}
