package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payroll/internal/models"
	"github.com/wolfeidau/payroll/internal/store"
)

// employeeRecord is the stored form of an employee; the owner is kept by ID and joined
// on read so owner updates are visible through every employee.
type employeeRecord struct {
	employee models.Employee // Owner is always nil here
	ownerID  uuid.UUID
}

// EmployeeStore implements store.EmployeeStore using in-memory storage.
type EmployeeStore struct {
	mu sync.RWMutex

	owners    *OwnerStore
	employees map[uuid.UUID]*employeeRecord // employee_id -> record
}

// NewEmployeeStore creates a new in-memory employee store which resolves owners
// through the given owner store.
func NewEmployeeStore(owners *OwnerStore) *EmployeeStore {
	return &EmployeeStore{
		owners:    owners,
		employees: make(map[uuid.UUID]*employeeRecord),
	}
}

// GetEmployee retrieves an employee by ID.
func (s *EmployeeStore) GetEmployee(ctx context.Context, employeeID uuid.UUID) (*models.Employee, error) {
	s.mu.RLock()
	rec, exists := s.employees[employeeID]
	if !exists {
		s.mu.RUnlock()
		return nil, store.ErrEmployeeNotFound
	}
	employee, ownerID := rec.employee, rec.ownerID
	s.mu.RUnlock()

	return s.join(employee, ownerID)
}

// InsertEmployee stores a new employee bound to an existing owner.
func (s *EmployeeStore) InsertEmployee(ctx context.Context, employee *models.Employee) (*models.Employee, error) {
	if employee.Owner == nil || employee.Owner.OwnerID == uuid.Nil {
		return nil, fmt.Errorf("employee owner is required")
	}
	if _, ok := s.owners.getOwner(employee.Owner.OwnerID); !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrOwnerNotFound, employee.Owner.OwnerID)
	}

	rec := &employeeRecord{
		employee: *employee,
		ownerID:  employee.Owner.OwnerID,
	}
	rec.employee.Owner = nil

	if rec.employee.EmployeeID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate employee id: %w", err)
		}
		rec.employee.EmployeeID = id
	}

	now := time.Now()
	rec.employee.Revision = 0
	rec.employee.CreatedAt = now
	rec.employee.UpdatedAt = now

	s.mu.Lock()
	if _, exists := s.employees[rec.employee.EmployeeID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("employee %s already exists", rec.employee.EmployeeID)
	}
	s.employees[rec.employee.EmployeeID] = rec
	stored := rec.employee
	s.mu.Unlock()

	log.Debug().Str("employee_id", stored.EmployeeID.String()).Msg("Inserted employee")

	return s.join(stored, rec.ownerID)
}

// UpdateEmployeeIfRevision updates the mutable fields when the revision matches.
// The owner reference is left untouched.
func (s *EmployeeStore) UpdateEmployeeIfRevision(ctx context.Context, employee *models.Employee, expectedRevision int64) (*models.Employee, error) {
	s.mu.Lock()
	rec, exists := s.employees[employee.EmployeeID]
	if !exists {
		s.mu.Unlock()
		return nil, store.ErrEmployeeNotFound
	}

	if rec.employee.Revision != expectedRevision {
		current := rec.employee.Revision
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: expected %d, found %d", store.ErrRevisionConflict, expectedRevision, current)
	}

	rec.employee.FirstName = employee.FirstName
	rec.employee.LastName = employee.LastName
	rec.employee.Description = employee.Description
	rec.employee.Revision++
	rec.employee.UpdatedAt = time.Now()

	stored, ownerID := rec.employee, rec.ownerID
	s.mu.Unlock()

	return s.join(stored, ownerID)
}

// DeleteEmployee removes an employee by ID.
func (s *EmployeeStore) DeleteEmployee(ctx context.Context, employeeID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.employees[employeeID]; !exists {
		return store.ErrEmployeeNotFound
	}
	delete(s.employees, employeeID)

	return nil
}

// ListEmployees returns employees ordered by ID (UUIDv7 is time ordered).
func (s *EmployeeStore) ListEmployees(ctx context.Context, opts store.ListEmployeesOptions) ([]*models.Employee, int, error) {
	s.mu.RLock()
	records := make([]employeeRecord, 0, len(s.employees))
	for _, rec := range s.employees {
		records = append(records, *rec)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].employee.EmployeeID.String() < records[j].employee.EmployeeID.String()
	})

	total := len(records)
	start := min(max(opts.Offset, 0), total)
	end := total
	if opts.Limit > 0 {
		end = min(start+opts.Limit, total)
	}

	result := make([]*models.Employee, 0, end-start)
	for _, rec := range records[start:end] {
		employee, err := s.join(rec.employee, rec.ownerID)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, employee)
	}

	return result, total, nil
}

// join returns a copy of employee with its owner populated.
func (s *EmployeeStore) join(employee models.Employee, ownerID uuid.UUID) (*models.Employee, error) {
	owner, ok := s.owners.getOwner(ownerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrOwnerNotFound, ownerID)
	}
	employee.Owner = owner
	return &employee, nil
}
