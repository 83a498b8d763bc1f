package models

import (
	"time"

	"github.com/google/uuid"
)

// Employee is a mutable record owned by exactly one Owner.
type Employee struct {
	EmployeeID  uuid.UUID // UUIDv7, assigned on create
	FirstName   string
	LastName    string
	Description string

	// Owner is bound from the acting principal on create and never changed afterwards.
	Owner *Owner

	// Revision starts at 0 and is incremented by every successful update.
	Revision int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnerName returns the owning principal's name, or "" when no owner is bound.
func (e *Employee) OwnerName() string {
	if e == nil || e.Owner == nil {
		return ""
	}
	return e.Owner.Name
}

// Clone returns a deep copy of the employee including its owner.
func (e *Employee) Clone() *Employee {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Owner = e.Owner.Clone()
	return &clone
}
