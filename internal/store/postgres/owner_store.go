package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payroll/internal/models"
	"github.com/wolfeidau/payroll/internal/store"
)

const ownerColumns = `owner_id, name, credential_hash, roles, created_at, updated_at`

// OwnerStore implements store.OwnerStore using PostgreSQL.
// Name uniqueness is enforced by the owners_name_key constraint.
type OwnerStore struct {
	pool *pgxpool.Pool
}

// NewOwnerStore creates a new PostgreSQL-backed owner store.
// It shares the connection pool with the employee store.
func NewOwnerStore(pool *pgxpool.Pool) *OwnerStore {
	return &OwnerStore{
		pool: pool,
	}
}

// GetOwnerByName retrieves an owner by its unique name.
func (s *OwnerStore) GetOwnerByName(ctx context.Context, name string) (*models.Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners WHERE name = $1`

	owner, err := scanOwner(s.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOwnerNotFound
		}
		return nil, fmt.Errorf("failed to get owner: %w", mapPostgresError(err))
	}

	return owner, nil
}

// InsertOwnerIfAbsent relies on ON CONFLICT DO NOTHING so exactly one concurrent
// insert for a name wins; losers read back the winner.
func (s *OwnerStore) InsertOwnerIfAbsent(ctx context.Context, owner *models.Owner) (*models.Owner, bool, error) {
	ownerID := owner.OwnerID
	if ownerID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate owner id: %w", err)
		}
		ownerID = id
	}

	query := `
		INSERT INTO owners (owner_id, name, credential_hash, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (name) DO NOTHING
		RETURNING ` + ownerColumns

	inserted, err := scanOwner(s.pool.QueryRow(ctx, query,
		ownerID,
		owner.Name,
		owner.CredentialHash,
		rolesOrEmpty(owner.Roles),
		time.Now(),
	))
	if err == nil {
		log.Debug().
			Str("owner_id", inserted.OwnerID.String()).
			Str("owner", inserted.Name).
			Msg("Inserted owner")
		return inserted, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to insert owner: %w", mapPostgresError(err))
	}

	// Conflict: another writer holds the name.
	existing, err := s.GetOwnerByName(ctx, owner.Name)
	if err != nil {
		if errors.Is(err, store.ErrOwnerNotFound) {
			return nil, false, fmt.Errorf("%w: %s", store.ErrOwnerAlreadyExists, owner.Name)
		}
		return nil, false, err
	}

	return existing, false, nil
}

// PutOwner upserts the credential and roles of the named owner.
func (s *OwnerStore) PutOwner(ctx context.Context, owner *models.Owner) (*models.Owner, error) {
	ownerID := owner.OwnerID
	if ownerID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate owner id: %w", err)
		}
		ownerID = id
	}

	query := `
		INSERT INTO owners (owner_id, name, credential_hash, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (name) DO UPDATE
		SET credential_hash = EXCLUDED.credential_hash,
		    roles = EXCLUDED.roles,
		    updated_at = EXCLUDED.updated_at
		RETURNING ` + ownerColumns

	stored, err := scanOwner(s.pool.QueryRow(ctx, query,
		ownerID,
		owner.Name,
		owner.CredentialHash,
		rolesOrEmpty(owner.Roles),
		time.Now(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to put owner: %w", mapPostgresError(err))
	}

	return stored, nil
}

func scanOwner(row pgx.Row) (*models.Owner, error) {
	var o models.Owner
	err := row.Scan(
		&o.OwnerID,
		&o.Name,
		&o.CredentialHash,
		&o.Roles,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// rolesOrEmpty keeps NULL out of the NOT NULL roles column.
func rolesOrEmpty(roles []string) []string {
	if roles == nil {
		return []string{}
	}
	return roles
}
