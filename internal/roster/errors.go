package roster

import (
	"errors"
	"fmt"

	"github.com/wolfeidau/payroll/internal/store"
)

var (
	ErrNotFound            = errors.New("employee not found")
	ErrForbidden           = errors.New("forbidden")
	ErrConcurrencyConflict = errors.New("concurrent modification")
	ErrStorage             = errors.New("storage failure")
)

// mapStoreError translates store sentinels into roster errors.
func mapStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrEmployeeNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrRevisionConflict):
		return fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
	default:
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
}
