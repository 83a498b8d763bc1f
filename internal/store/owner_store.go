package store

import (
	"context"
	"errors"

	"github.com/wolfeidau/payroll/internal/models"
)

// Errors
var (
	ErrOwnerNotFound      = errors.New("owner not found")
	ErrOwnerAlreadyExists = errors.New("owner already exists")
)

// OwnerStore manages owners keyed by their unique name.
type OwnerStore interface {
	// GetOwnerByName retrieves an owner by name.
	// Returns ErrOwnerNotFound if no owner has that name.
	GetOwnerByName(ctx context.Context, name string) (*models.Owner, error)

	// InsertOwnerIfAbsent atomically inserts owner unless one with the same name exists.
	// It returns the stored owner and true when this call created it, or the existing
	// owner and false. ErrOwnerAlreadyExists is returned only when the insert lost a race
	// and the winner could not be read back.
	InsertOwnerIfAbsent(ctx context.Context, owner *models.Owner) (*models.Owner, bool, error)

	// PutOwner creates or replaces the credential and roles of the named owner.
	// It is used by identity management (seeding), never by the write path.
	PutOwner(ctx context.Context, owner *models.Owner) (*models.Owner, error)
}
