package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payroll/internal/models"
	"github.com/wolfeidau/payroll/internal/store"
)

// OwnerStore implements store.OwnerStore using in-memory storage.
// This implementation is for testing and development - data is lost on restart.
type OwnerStore struct {
	mu sync.RWMutex

	owners       map[uuid.UUID]*models.Owner // owner_id -> Owner
	ownersByName map[string]*models.Owner    // name -> Owner
}

// NewOwnerStore creates a new in-memory owner store.
func NewOwnerStore() *OwnerStore {
	return &OwnerStore{
		owners:       make(map[uuid.UUID]*models.Owner),
		ownersByName: make(map[string]*models.Owner),
	}
}

// GetOwnerByName retrieves an owner by its unique name.
func (s *OwnerStore) GetOwnerByName(ctx context.Context, name string) (*models.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, exists := s.ownersByName[name]
	if !exists {
		return nil, store.ErrOwnerNotFound
	}

	return owner.Clone(), nil
}

// getOwner retrieves an owner by ID for the employee store join.
func (s *OwnerStore) getOwner(ownerID uuid.UUID) (*models.Owner, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, exists := s.owners[ownerID]
	if !exists {
		return nil, false
	}
	return owner.Clone(), true
}

// InsertOwnerIfAbsent inserts the owner unless the name is already taken.
// The check and insert happen under one write lock so concurrent callers for the same
// name observe exactly one insert.
func (s *OwnerStore) InsertOwnerIfAbsent(ctx context.Context, owner *models.Owner) (*models.Owner, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.ownersByName[owner.Name]; exists {
		return existing.Clone(), false, nil
	}

	clone := owner.Clone()
	if clone.OwnerID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, false, err
		}
		clone.OwnerID = id
	}
	if _, exists := s.owners[clone.OwnerID]; exists {
		return nil, false, store.ErrOwnerAlreadyExists
	}

	now := time.Now()
	clone.CreatedAt = now
	clone.UpdatedAt = now

	s.owners[clone.OwnerID] = clone
	s.ownersByName[clone.Name] = clone

	log.Debug().Str("owner_id", clone.OwnerID.String()).Str("owner", clone.Name).Msg("Inserted owner")

	return clone.Clone(), true, nil
}

// PutOwner creates the named owner or replaces its credential and roles.
func (s *OwnerStore) PutOwner(ctx context.Context, owner *models.Owner) (*models.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if existing, exists := s.ownersByName[owner.Name]; exists {
		existing.CredentialHash = owner.CredentialHash
		existing.Roles = append([]string(nil), owner.Roles...)
		existing.UpdatedAt = now
		return existing.Clone(), nil
	}

	clone := owner.Clone()
	if clone.OwnerID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		clone.OwnerID = id
	}
	clone.CreatedAt = now
	clone.UpdatedAt = now

	s.owners[clone.OwnerID] = clone
	s.ownersByName[clone.Name] = clone

	return clone.Clone(), nil
}
