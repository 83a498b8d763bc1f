// Package directory resolves owners by name, creating them on first use.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payroll/internal/models"
	"github.com/wolfeidau/payroll/internal/store"
	"github.com/wolfeidau/payroll/internal/telemetry"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalidName is returned for an empty owner name.
	ErrInvalidName = errors.New("owner name is required")

	// ErrProvisioning is returned when a new owner could not be persisted.
	// Callers are expected to retry the lookup once.
	ErrProvisioning = errors.New("owner provisioning failed")

	// ErrOwnerUnknown is returned for an unknown name when provisioning is disabled.
	ErrOwnerUnknown = errors.New("owner unknown")
)

// Option configures an OwnerDirectory.
type Option func(*OwnerDirectory)

// WithAutoProvision enables or disables creating owners on first reference.
func WithAutoProvision(enabled bool) Option {
	return func(d *OwnerDirectory) {
		d.autoProvision = enabled
	}
}

// OwnerDirectory looks up owners by name and provisions missing ones.
//
// Concurrent calls for one name within the process share a single lookup. Across
// processes uniqueness relies on store.OwnerStore.InsertOwnerIfAbsent being atomic.
type OwnerDirectory struct {
	owners        store.OwnerStore
	autoProvision bool
	group         singleflight.Group
}

// New creates an OwnerDirectory. Provisioning is enabled unless disabled by option.
func New(owners store.OwnerStore, opts ...Option) *OwnerDirectory {
	d := &OwnerDirectory{
		owners:        owners,
		autoProvision: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AutoProvision reports whether unknown names are provisioned.
func (d *OwnerDirectory) AutoProvision() bool {
	return d.autoProvision
}

// ResolveOrProvision returns the owner with the given name, creating it with the
// MANAGER role and a placeholder credential if it does not exist.
// Every caller receives its own copy of the owner. Cancelling ctx abandons the wait
// but not a lookup other callers share.
func (d *OwnerDirectory) ResolveOrProvision(ctx context.Context, name string) (*models.Owner, error) {
	if name == "" {
		return nil, ErrInvalidName
	}

	// The shared lookup outlives any single caller; each caller stops waiting when
	// its own context ends.
	results := d.group.DoChan(name, func() (any, error) {
		return d.resolve(context.WithoutCancel(ctx), name)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-results:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	owner, ok := res.Val.(*models.Owner)
	if !ok {
		return nil, fmt.Errorf("singleflight returned unexpected type %T", res.Val)
	}

	if res.Shared {
		log.Debug().Str("owner", name).Msg("Shared owner resolution")
	}

	return owner.Clone(), nil
}

func (d *OwnerDirectory) resolve(ctx context.Context, name string) (*models.Owner, error) {
	owner, err := d.owners.GetOwnerByName(ctx, name)
	if err == nil {
		return owner, nil
	}
	if !errors.Is(err, store.ErrOwnerNotFound) {
		return nil, fmt.Errorf("failed to look up owner: %w", err)
	}

	if !d.autoProvision {
		return nil, fmt.Errorf("%w: %s", ErrOwnerUnknown, name)
	}

	owner, created, err := d.owners.InsertOwnerIfAbsent(ctx, &models.Owner{
		Name:           name,
		CredentialHash: models.PlaceholderCredential,
		Roles:          []string{models.RoleManager},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvisioning, err)
	}

	if created {
		telemetry.GetMetrics().OwnersProvisionedTotal.Add(ctx, 1)
		log.Info().
			Str("owner", owner.Name).
			Str("owner_id", owner.OwnerID.String()).
			Msg("Provisioned owner")
	}

	return owner, nil
}
