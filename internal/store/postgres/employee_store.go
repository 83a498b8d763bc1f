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

// employeeSelect joins the owner so every read returns a fully bound employee.
// It expects the employee relation to be aliased "e".
const employeeSelect = `
	SELECT
		e.employee_id, e.first_name, e.last_name, e.description,
		e.revision, e.created_at, e.updated_at,
		o.owner_id, o.name, o.credential_hash, o.roles, o.created_at, o.updated_at
`

// EmployeeStore implements store.EmployeeStore using PostgreSQL.
type EmployeeStore struct {
	pool *pgxpool.Pool
}

// NewEmployeeStore creates a new PostgreSQL-backed employee store.
func NewEmployeeStore(pool *pgxpool.Pool) *EmployeeStore {
	return &EmployeeStore{
		pool: pool,
	}
}

// GetEmployee retrieves an employee by ID.
func (s *EmployeeStore) GetEmployee(ctx context.Context, employeeID uuid.UUID) (*models.Employee, error) {
	query := employeeSelect + `
		FROM employees e
		JOIN owners o ON o.owner_id = e.owner_id
		WHERE e.employee_id = $1
	`

	employee, err := scanEmployee(s.pool.QueryRow(ctx, query, employeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", mapPostgresError(err))
	}

	return employee, nil
}

// InsertEmployee inserts a new employee at revision 0.
func (s *EmployeeStore) InsertEmployee(ctx context.Context, employee *models.Employee) (*models.Employee, error) {
	if employee.Owner == nil || employee.Owner.OwnerID == uuid.Nil {
		return nil, fmt.Errorf("employee owner is required")
	}

	employeeID := employee.EmployeeID
	if employeeID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate employee id: %w", err)
		}
		employeeID = id
	}

	query := `
		WITH e AS (
			INSERT INTO employees (
				employee_id, first_name, last_name, description,
				owner_id, revision, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
			RETURNING *
		)` + employeeSelect + `
		FROM e
		JOIN owners o ON o.owner_id = e.owner_id
	`

	inserted, err := scanEmployee(s.pool.QueryRow(ctx, query,
		employeeID,
		employee.FirstName,
		employee.LastName,
		employee.Description,
		employee.Owner.OwnerID,
		time.Now(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert employee: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("employee_id", inserted.EmployeeID.String()).
		Str("owner", inserted.OwnerName()).
		Msg("Inserted employee")

	return inserted, nil
}

// UpdateEmployeeIfRevision performs a compare-and-set on the revision column.
func (s *EmployeeStore) UpdateEmployeeIfRevision(ctx context.Context, employee *models.Employee, expectedRevision int64) (*models.Employee, error) {
	query := `
		WITH e AS (
			UPDATE employees
			SET
				first_name = $2,
				last_name = $3,
				description = $4,
				revision = revision + 1,
				updated_at = NOW()
			WHERE employee_id = $1
			  AND revision = $5
			RETURNING *
		)` + employeeSelect + `
		FROM e
		JOIN owners o ON o.owner_id = e.owner_id
	`

	updated, err := scanEmployee(s.pool.QueryRow(ctx, query,
		employee.EmployeeID,
		employee.FirstName,
		employee.LastName,
		employee.Description,
		expectedRevision,
	))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update employee: %w", mapPostgresError(err))
	}

	// No row matched: distinguish a missing employee from a stale revision.
	var current int64
	err = s.pool.QueryRow(ctx, `SELECT revision FROM employees WHERE employee_id = $1`, employee.EmployeeID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to read employee revision: %w", mapPostgresError(err))
	}

	return nil, fmt.Errorf("%w: expected %d, found %d", store.ErrRevisionConflict, expectedRevision, current)
}

// DeleteEmployee removes an employee by ID.
func (s *EmployeeStore) DeleteEmployee(ctx context.Context, employeeID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM employees WHERE employee_id = $1`, employeeID)
	if err != nil {
		return fmt.Errorf("failed to delete employee: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrEmployeeNotFound
	}

	log.Debug().Str("employee_id", employeeID.String()).Msg("Deleted employee")

	return nil
}

// ListEmployees returns a page of employees ordered by ID and the total row count.
func (s *EmployeeStore) ListEmployees(ctx context.Context, opts store.ListEmployeesOptions) ([]*models.Employee, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM employees`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count employees: %w", mapPostgresError(err))
	}

	// LIMIT NULL means no limit
	var limit any
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	query := employeeSelect + `
		FROM employees e
		JOIN owners o ON o.owner_id = e.owner_id
		ORDER BY e.employee_id
		LIMIT $1 OFFSET $2
	`

	rows, err := s.pool.Query(ctx, query, limit, max(opts.Offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list employees: %w", mapPostgresError(err))
	}
	defer rows.Close()

	employees := make([]*models.Employee, 0)
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, employee)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate employees: %w", mapPostgresError(err))
	}

	return employees, total, nil
}

func scanEmployee(row pgx.Row) (*models.Employee, error) {
	var (
		e models.Employee
		o models.Owner
	)
	err := row.Scan(
		&e.EmployeeID,
		&e.FirstName,
		&e.LastName,
		&e.Description,
		&e.Revision,
		&e.CreatedAt,
		&e.UpdatedAt,
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
	e.Owner = &o
	return &e, nil
}
