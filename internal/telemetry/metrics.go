package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/wolfeidau/payroll"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Roster metrics
	EmployeesCreatedTotal  metric.Int64Counter
	EmployeesUpdatedTotal  metric.Int64Counter
	EmployeesDeletedTotal  metric.Int64Counter
	AuthzDenialsTotal      metric.Int64Counter
	ConcurrencyConflicts   metric.Int64Counter
	RosterOperationLatency metric.Float64Histogram

	// Directory metrics
	OwnersProvisionedTotal metric.Int64Counter

	// Notification metrics
	EventsPublishedTotal metric.Int64Counter
	EventsDroppedTotal   metric.Int64Counter
	ActiveSubscribers    metric.Int64UpDownCounter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary.
// Instruments bind to the global meter provider at first use, so InitTelemetry
// should run before the first call when exporting is enabled.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// Tracer returns the tracer used for roster spans.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(instrumentationName)

	m := &Metrics{}

	m.EmployeesCreatedTotal, _ = meter.Int64Counter(
		"payroll.employees.created.total",
		metric.WithDescription("Total number of employees created"),
		metric.WithUnit("{employee}"),
	)

	m.EmployeesUpdatedTotal, _ = meter.Int64Counter(
		"payroll.employees.updated.total",
		metric.WithDescription("Total number of employee updates committed"),
		metric.WithUnit("{employee}"),
	)

	m.EmployeesDeletedTotal, _ = meter.Int64Counter(
		"payroll.employees.deleted.total",
		metric.WithDescription("Total number of employees deleted"),
		metric.WithUnit("{employee}"),
	)

	m.AuthzDenialsTotal, _ = meter.Int64Counter(
		"payroll.authz.denials.total",
		metric.WithDescription("Total number of mutations denied by the ownership policy"),
		metric.WithUnit("{denial}"),
	)

	m.ConcurrencyConflicts, _ = meter.Int64Counter(
		"payroll.employees.conflicts.total",
		metric.WithDescription("Total number of updates rejected by the revision check"),
		metric.WithUnit("{conflict}"),
	)

	m.RosterOperationLatency, _ = meter.Float64Histogram(
		"payroll.roster.operation.duration",
		metric.WithDescription("Duration of roster mutations"),
		metric.WithUnit("ms"),
	)

	m.OwnersProvisionedTotal, _ = meter.Int64Counter(
		"payroll.owners.provisioned.total",
		metric.WithDescription("Total number of owners created on first write"),
		metric.WithUnit("{owner}"),
	)

	m.EventsPublishedTotal, _ = meter.Int64Counter(
		"payroll.events.published.total",
		metric.WithDescription("Total number of change events published"),
		metric.WithUnit("{event}"),
	)

	m.EventsDroppedTotal, _ = meter.Int64Counter(
		"payroll.events.dropped.total",
		metric.WithDescription("Total number of events dropped for slow or closed subscribers"),
		metric.WithUnit("{event}"),
	)

	m.ActiveSubscribers, _ = meter.Int64UpDownCounter(
		"payroll.events.subscribers.active",
		metric.WithDescription("Number of active event subscribers"),
		metric.WithUnit("{subscriber}"),
	)

	return m
}
