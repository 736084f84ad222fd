package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/seatwise/floorplan"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Layout batch metrics
	BatchesAppliedTotal  metric.Int64Counter
	BatchesFailedTotal   metric.Int64Counter
	BatchApplyDuration   metric.Float64Histogram
	DesksCreatedTotal    metric.Int64Counter
	DesksUpdatedTotal    metric.Int64Counter
	DesksClearedTotal    metric.Int64Counter

	// Assignment metrics
	AssignmentsCreatedTotal metric.Int64Counter
	AssignmentsEndedTotal   metric.Int64Counter
	ConflictsClosedTotal    metric.Int64Counter
	BookingsTotal           metric.Int64Counter

	// Block-out zone metrics
	ZonesCreatedTotal metric.Int64Counter
	ZonesDeletedTotal metric.Int64Counter

	// Projection metrics
	FloorProjectionDuration metric.Float64Histogram
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Layout batch metrics
	m.BatchesAppliedTotal, _ = meter.Int64Counter(
		"floorplan.layout.batches.applied.total",
		metric.WithDescription("Total number of layout batches committed"),
		metric.WithUnit("{batch}"),
	)

	m.BatchesFailedTotal, _ = meter.Int64Counter(
		"floorplan.layout.batches.failed.total",
		metric.WithDescription("Total number of layout batches rejected or rolled back"),
		metric.WithUnit("{batch}"),
	)

	m.BatchApplyDuration, _ = meter.Float64Histogram(
		"floorplan.layout.batches.duration",
		metric.WithDescription("Duration of layout batch application"),
		metric.WithUnit("ms"),
	)

	m.DesksCreatedTotal, _ = meter.Int64Counter(
		"floorplan.desks.created.total",
		metric.WithDescription("Total number of desks created by layout batches"),
		metric.WithUnit("{desk}"),
	)

	m.DesksUpdatedTotal, _ = meter.Int64Counter(
		"floorplan.desks.updated.total",
		metric.WithDescription("Total number of desks updated in place by layout batches"),
		metric.WithUnit("{desk}"),
	)

	m.DesksClearedTotal, _ = meter.Int64Counter(
		"floorplan.desks.cleared.total",
		metric.WithDescription("Total number of desks removed by clear batches"),
		metric.WithUnit("{desk}"),
	)

	// Assignment metrics
	m.AssignmentsCreatedTotal, _ = meter.Int64Counter(
		"floorplan.assignments.created.total",
		metric.WithDescription("Total number of assignments created"),
		metric.WithUnit("{assignment}"),
	)

	m.AssignmentsEndedTotal, _ = meter.Int64Counter(
		"floorplan.assignments.ended.total",
		metric.WithDescription("Total number of assignments ended explicitly"),
		metric.WithUnit("{assignment}"),
	)

	m.ConflictsClosedTotal, _ = meter.Int64Counter(
		"floorplan.assignments.conflicts_closed.total",
		metric.WithDescription("Total number of conflicting assignments closed during canonicalization"),
		metric.WithUnit("{assignment}"),
	)

	m.BookingsTotal, _ = meter.Int64Counter(
		"floorplan.bookings.total",
		metric.WithDescription("Total number of self-service desk bookings"),
		metric.WithUnit("{booking}"),
	)

	// Block-out zone metrics
	m.ZonesCreatedTotal, _ = meter.Int64Counter(
		"floorplan.zones.created.total",
		metric.WithDescription("Total number of block-out zones created"),
		metric.WithUnit("{zone}"),
	)

	m.ZonesDeletedTotal, _ = meter.Int64Counter(
		"floorplan.zones.deleted.total",
		metric.WithDescription("Total number of block-out zones deleted"),
		metric.WithUnit("{zone}"),
	)

	// Projection metrics
	m.FloorProjectionDuration, _ = meter.Float64Histogram(
		"floorplan.projection.floor.duration",
		metric.WithDescription("Duration of full floor projections"),
		metric.WithUnit("ms"),
	)

	return m
}
