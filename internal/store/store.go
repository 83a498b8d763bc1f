package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/payroll/internal/models"
)

// Sentinel errors for employee store operations
var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrRevisionConflict = errors.New("employee revision conflict")
)

// EmployeeStore defines the persistence boundary for employee records.
type EmployeeStore interface {
	// GetEmployee retrieves an employee with its owner populated.
	// Returns ErrEmployeeNotFound if the employee doesn't exist.
	GetEmployee(ctx context.Context, employeeID uuid.UUID) (*models.Employee, error)

	// InsertEmployee persists a new employee. A nil EmployeeID is replaced with a fresh
	// UUIDv7. The stored copy, including timestamps, is returned.
	InsertEmployee(ctx context.Context, employee *models.Employee) (*models.Employee, error)

	// UpdateEmployeeIfRevision writes the mutable fields of employee only if the stored
	// revision still equals expectedRevision, incrementing it by one.
	// Returns ErrRevisionConflict on mismatch and ErrEmployeeNotFound if the row is gone.
	UpdateEmployeeIfRevision(ctx context.Context, employee *models.Employee, expectedRevision int64) (*models.Employee, error)

	// DeleteEmployee removes an employee.
	// Returns ErrEmployeeNotFound if the employee doesn't exist.
	DeleteEmployee(ctx context.Context, employeeID uuid.UUID) error

	// ListEmployees returns a page of employees ordered by creation and the total count.
	ListEmployees(ctx context.Context, opts ListEmployeesOptions) ([]*models.Employee, int, error)
}

// ListEmployeesOptions specifies paging for ListEmployees
type ListEmployeesOptions struct {
	Offset int
	Limit  int // 0 = all
}
