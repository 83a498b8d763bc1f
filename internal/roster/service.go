// Package roster implements authorized employee mutations and their change events.
package roster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payroll/internal/auth"
	"github.com/wolfeidau/payroll/internal/directory"
	"github.com/wolfeidau/payroll/internal/models"
	"github.com/wolfeidau/payroll/internal/notify"
	"github.com/wolfeidau/payroll/internal/store"
	"github.com/wolfeidau/payroll/internal/telemetry"
	"github.com/wolfeidau/payroll/internal/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// LocationPrefix is the path under which employees are addressed.
const LocationPrefix = "/api/employees/"

// Location returns the path of an employee, used as the change event payload.
func Location(id uuid.UUID) string {
	return LocationPrefix + id.String()
}

// OwnerResolver finds or provisions the owner for a principal name.
type OwnerResolver interface {
	ResolveOrProvision(ctx context.Context, name string) (*models.Owner, error)
}

// Decider authorizes a mutation given the acting principal and the record owner.
type Decider interface {
	Decide(op auth.Operation, actingPrincipal, recordOwner string) auth.Decision
}

// Fields are the caller supplied attributes of an employee. Names and description
// are free text; adapters enforce their own input rules.
type Fields struct {
	FirstName   string
	LastName    string
	Description string

	// Owner is ignored. The owner of a new record is the acting principal and
	// updates never change it.
	Owner string
}

// Page is one page of employees.
type Page struct {
	Employees     []*models.Employee
	Paging        util.Paging
	TotalElements int
	TotalPages    int
}

type updateOptions struct {
	expectedRevision *int64
}

// UpdateOption adjusts a single Update call.
type UpdateOption func(*updateOptions)

// WithExpectedRevision fails the update with ErrConcurrencyConflict unless the stored
// revision equals rev.
func WithExpectedRevision(rev int64) UpdateOption {
	return func(o *updateOptions) {
		o.expectedRevision = &rev
	}
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy replaces the ownership policy.
func WithPolicy(policy Decider) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// Service performs employee mutations. Each mutation is authorized against the
// stored owner, persisted, and announced on the hub, in that order.
//
// Once authorization passes the write and its event are not cancelled by the caller.
// Commit and publish for one id hold a striped lock so subscribers see events for a
// record in commit order.
type Service struct {
	employees store.EmployeeStore
	owners    OwnerResolver
	hub       notify.Publisher
	policy    Decider
	locks     stripedLock
}

// New creates a Service.
func New(employees store.EmployeeStore, owners OwnerResolver, hub notify.Publisher, opts ...Option) *Service {
	s := &Service{
		employees: employees,
		owners:    owners,
		hub:       hub,
		policy:    auth.OwnershipPolicy{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new employee owned by actingPrincipal.
func (s *Service) Create(ctx context.Context, fields Fields, actingPrincipal string) (_ *models.Employee, err error) {
	ctx, op := s.begin(ctx, auth.OperationCreate, actingPrincipal)
	defer func() { op.end(ctx, err) }()

	if err := s.authorize(ctx, auth.OperationCreate, actingPrincipal, actingPrincipal); err != nil {
		return nil, err
	}

	owner, err := s.resolveOwner(ctx, actingPrincipal)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate employee id: %w", ErrStorage, err)
	}

	unlock := s.locks.lock(id)
	defer unlock()

	ctx = context.WithoutCancel(ctx)

	created, err := s.employees.InsertEmployee(ctx, &models.Employee{
		EmployeeID:  id,
		FirstName:   fields.FirstName,
		LastName:    fields.LastName,
		Description: fields.Description,
		Owner:       owner,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.hub.Publish(ctx, notify.TopicNewEmployee, Location(created.EmployeeID))
	telemetry.GetMetrics().EmployeesCreatedTotal.Add(ctx, 1)

	log.Info().
		Str("employee_id", created.EmployeeID.String()).
		Str("owner", created.OwnerName()).
		Msg("Employee created")

	return created, nil
}

// Update replaces the attributes of an employee owned by actingPrincipal.
func (s *Service) Update(ctx context.Context, id uuid.UUID, fields Fields, actingPrincipal string, opts ...UpdateOption) (_ *models.Employee, err error) {
	ctx, op := s.begin(ctx, auth.OperationUpdate, actingPrincipal)
	op.span.SetAttributes(attribute.String("employee_id", id.String()))
	defer func() { op.end(ctx, err) }()

	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}

	current, err := s.employees.GetEmployee(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}

	if err := s.authorize(ctx, auth.OperationUpdate, actingPrincipal, current.OwnerName()); err != nil {
		return nil, err
	}

	if o.expectedRevision != nil && *o.expectedRevision != current.Revision {
		return nil, fmt.Errorf("%w: expected revision %d, found %d", ErrConcurrencyConflict, *o.expectedRevision, current.Revision)
	}

	unlock := s.locks.lock(id)
	defer unlock()

	ctx = context.WithoutCancel(ctx)

	updated, err := s.employees.UpdateEmployeeIfRevision(ctx, &models.Employee{
		EmployeeID:  id,
		FirstName:   fields.FirstName,
		LastName:    fields.LastName,
		Description: fields.Description,
		Owner:       current.Owner,
	}, current.Revision)
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.hub.Publish(ctx, notify.TopicUpdateEmployee, Location(updated.EmployeeID))
	telemetry.GetMetrics().EmployeesUpdatedTotal.Add(ctx, 1)

	log.Info().
		Str("employee_id", updated.EmployeeID.String()).
		Str("owner", updated.OwnerName()).
		Int64("revision", updated.Revision).
		Msg("Employee updated")

	return updated, nil
}

// Delete removes an employee owned by actingPrincipal.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actingPrincipal string) (err error) {
	ctx, op := s.begin(ctx, auth.OperationDelete, actingPrincipal)
	op.span.SetAttributes(attribute.String("employee_id", id.String()))
	defer func() { op.end(ctx, err) }()

	current, err := s.employees.GetEmployee(ctx, id)
	if err != nil {
		return mapStoreError(err)
	}

	if err := s.authorize(ctx, auth.OperationDelete, actingPrincipal, current.OwnerName()); err != nil {
		return err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	ctx = context.WithoutCancel(ctx)

	if err := s.employees.DeleteEmployee(ctx, id); err != nil {
		return mapStoreError(err)
	}

	// the snapshot still identifies the deleted record
	s.hub.Publish(ctx, notify.TopicDeleteEmployee, Location(current.EmployeeID))
	telemetry.GetMetrics().EmployeesDeletedTotal.Add(ctx, 1)

	log.Info().
		Str("employee_id", current.EmployeeID.String()).
		Str("owner", current.OwnerName()).
		Msg("Employee deleted")

	return nil
}

// Get returns a single employee.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	employee, err := s.employees.GetEmployee(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return employee, nil
}

// List returns one page of employees ordered by id.
func (s *Service) List(ctx context.Context, page, size int) (*Page, error) {
	paging := util.NormalizePaging(page, size)

	employees, total, err := s.employees.ListEmployees(ctx, store.ListEmployeesOptions{
		Offset: paging.Offset(),
		Limit:  paging.Size,
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	return &Page{
		Employees:     employees,
		Paging:        paging,
		TotalElements: total,
		TotalPages:    paging.TotalPages(total),
	}, nil
}

func (s *Service) authorize(ctx context.Context, op auth.Operation, actingPrincipal, recordOwner string) error {
	if actingPrincipal == "" {
		return fmt.Errorf("%w: no acting principal", ErrForbidden)
	}

	if s.policy.Decide(op, actingPrincipal, recordOwner) == auth.Allow {
		return nil
	}

	telemetry.GetMetrics().AuthzDenialsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("operation", op.String())))

	log.Warn().
		Str("operation", op.String()).
		Str("principal", actingPrincipal).
		Str("owner", recordOwner).
		Msg("Mutation denied")

	return fmt.Errorf("%w: %s may not %s a record owned by %q", ErrForbidden, actingPrincipal, op, recordOwner)
}

// resolveOwner retries once when provisioning lost a race, after which the winner
// is visible to the lookup.
func (s *Service) resolveOwner(ctx context.Context, name string) (*models.Owner, error) {
	owner, err := s.owners.ResolveOrProvision(ctx, name)
	if errors.Is(err, directory.ErrProvisioning) {
		log.Warn().Err(err).Str("owner", name).Msg("Owner provisioning failed, retrying lookup")
		owner, err = s.owners.ResolveOrProvision(ctx, name)
	}

	switch {
	case err == nil:
		return owner, nil
	case errors.Is(err, directory.ErrInvalidName), errors.Is(err, directory.ErrOwnerUnknown):
		return nil, fmt.Errorf("%w: %w", ErrForbidden, err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
}

// operation records the span and latency of one mutation.
type operation struct {
	op    auth.Operation
	span  trace.Span
	start time.Time
}

func (s *Service) begin(ctx context.Context, op auth.Operation, actingPrincipal string) (context.Context, *operation) {
	ctx, span := telemetry.Tracer().Start(ctx, "roster."+op.String(),
		trace.WithAttributes(attribute.String("principal", actingPrincipal)))
	return ctx, &operation{op: op, span: span, start: time.Now()}
}

func (o *operation) end(ctx context.Context, err error) {
	defer o.span.End()

	telemetry.GetMetrics().RosterOperationLatency.Record(ctx,
		float64(time.Since(o.start).Milliseconds()),
		metric.WithAttributes(
			attribute.String("operation", o.op.String()),
			attribute.Bool("error", err != nil),
		))

	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			telemetry.GetMetrics().ConcurrencyConflicts.Add(ctx, 1)
		}
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
	}
}
