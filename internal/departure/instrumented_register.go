package departure

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedRegister guards a Register with a single mutex and records a
// span and metrics for every operation.
type InstrumentedRegister struct {
	mu        sync.RWMutex
	register  *Register
	telemetry *TelemetryProvider

	// Metrics
	operations        metric.Int64Counter
	purged            metric.Int64Counter
	departuresGauge   metric.Int64UpDownCounter
	operationDuration metric.Float64Histogram
}

func NewInstrumentedRegister(telemetry *TelemetryProvider) (*InstrumentedRegister, error) {
	meter := telemetry.Meter()

	operations, err := meter.Int64Counter("departure_operations_total",
		metric.WithDescription("Total number of departure register operations"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	purged, err := meter.Int64Counter("departures_purged_total",
		metric.WithDescription("Departures removed because they had already left"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	departuresGauge, err := meter.Int64UpDownCounter("departure_board_departures",
		metric.WithDescription("Current number of departures on the board"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram("operation_duration_seconds",
		metric.WithDescription("Duration of departure register operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &InstrumentedRegister{
		register:          NewRegister(),
		telemetry:         telemetry,
		operations:        operations,
		purged:            purged,
		departuresGauge:   departuresGauge,
		operationDuration: operationDuration,
	}, nil
}

func (ir *InstrumentedRegister) Add(ctx context.Context, departureTime Clock, trainLine string, id int, destination string, delay, track int) error {
	ctx, span := ir.telemetry.Tracer().Start(ctx, "departure_register.add",
		trace.WithAttributes(
			attribute.Int("departure.id", id),
			attribute.String("departure.time", departureTime.String()),
			attribute.String("departure.line", trainLine),
			attribute.String("departure.destination", destination),
			attribute.Int("departure.track", track),
		))
	defer span.End()
	start := time.Now()

	ir.mu.Lock()
	err := ir.register.Add(departureTime, trainLine, id, destination, delay, track)
	ir.mu.Unlock()

	if err == nil {
		span.AddEvent("departure_added")
		ir.departuresGauge.Add(ctx, 1)
	}
	ir.finish(ctx, span, "add", start, err)
	return err
}

func (ir *InstrumentedRegister) RemoveByID(ctx context.Context, id int) error {
	ctx, span := ir.telemetry.Tracer().Start(ctx, "departure_register.remove_by_id",
		trace.WithAttributes(attribute.Int("departure.id", id)))
	defer span.End()
	start := time.Now()

	ir.mu.Lock()
	before := ir.register.Count()
	err := ir.register.RemoveByID(id)
	removed := before - ir.register.Count()
	ir.mu.Unlock()

	span.SetAttributes(attribute.Int("departures.removed", removed))
	if removed > 0 {
		ir.departuresGauge.Add(ctx, int64(-removed))
	}
	ir.finish(ctx, span, "remove_by_id", start, err)
	return err
}

func (ir *InstrumentedRegister) RemoveBefore(ctx context.Context, cutoff Clock) (int, error) {
	ctx, span := ir.telemetry.Tracer().Start(ctx, "departure_register.remove_before",
		trace.WithAttributes(attribute.String("cutoff", cutoff.String())))
	defer span.End()
	start := time.Now()

	ir.mu.Lock()
	removed, err := ir.register.RemoveBefore(cutoff)
	ir.mu.Unlock()

	span.SetAttributes(attribute.Int("departures.removed", removed))
	if removed > 0 {
		span.AddEvent("departures_purged")
		ir.departuresGauge.Add(ctx, int64(-removed))
		ir.purged.Add(ctx, int64(removed))
	}
	ir.finish(ctx, span, "remove_before", start, err)
	return removed, err
}

func (ir *InstrumentedRegister) AssignDelay(ctx context.Context, id, minutes int) error {
	ctx, span := ir.telemetry.Tracer().Start(ctx, "departure_register.assign_delay",
		trace.WithAttributes(
			attribute.Int("departure.id", id),
			attribute.Int("departure.delay", minutes),
		))
	defer span.End()
	start := time.Now()

	ir.mu.Lock()
	err := ir.register.AssignDelay(id, minutes)
	ir.mu.Unlock()

	ir.finish(ctx, span, "assign_delay", start, err)
	return err
}

func (ir *InstrumentedRegister) AssignTrack(ctx context.Context, id, track int) error {
	ctx, span := ir.telemetry.Tracer().Start(ctx, "departure_register.assign_track",
		trace.WithAttributes(
			attribute.Int("departure.id", id),
			attribute.Int("departure.track", track),
		))
	defer span.End()
	start := time.Now()

	ir.mu.Lock()
	err := ir.register.AssignTrack(id, track)
	ir.mu.Unlock()

	ir.finish(ctx, span, "assign_track", start, err)
	return err
}

func (ir *InstrumentedRegister) Exists(ctx context.Context, id int) (bool, error) {
	ctx, span := ir.telemetry.Tracer().Start(ctx, "departure_register.exists",
		trace.WithAttributes(attribute.Int("departure.id", id)))
	defer span.End()
	start := time.Now()

	ir.mu.RLock()
	ok, err := ir.register.Exists(id)
	ir.mu.RUnlock()

	span.SetAttributes(attribute.Bool("departure.exists", ok))
	ir.finish(ctx, span, "exists", start, err)
	return ok, err
}

func (ir *InstrumentedRegister) DestinationExists(ctx context.Context, name string) (bool, error) {
	ctx, span := ir.telemetry.Tracer().Start(ctx, "departure_register.destination_exists",
		trace.WithAttributes(attribute.String("departure.destination", name)))
	defer span.End()
	start := time.Now()

	ir.mu.RLock()
	ok, err := ir.register.DestinationExists(name)
	ir.mu.RUnlock()

	span.SetAttributes(attribute.Bool("destination.exists", ok))
	ir.finish(ctx, span, "destination_exists", start, err)
	return ok, err
}

func (ir *InstrumentedRegister) FindByID(ctx context.Context, id int) (Departure, bool) {
	ctx, span := ir.telemetry.Tracer().Start(ctx, "departure_register.find_by_id",
		trace.WithAttributes(attribute.Int("departure.id", id)))
	defer span.End()
	start := time.Now()

	ir.mu.RLock()
	d, ok := ir.register.FindByID(id)
	ir.mu.RUnlock()

	if ok {
		span.AddEvent("departure_found")
	} else {
		span.AddEvent("departure_not_found")
	}
	ir.finish(ctx, span, "find_by_id", start, nil)
	return d, ok
}

func (ir *InstrumentedRegister) FindByDestination(ctx context.Context, name string) ([]Departure, error) {
	ctx, span := ir.telemetry.Tracer().Start(ctx, "departure_register.find_by_destination",
		trace.WithAttributes(attribute.String("departure.destination", name)))
	defer span.End()
	start := time.Now()

	ir.mu.RLock()
	matches, err := ir.register.FindByDestination(name)
	ir.mu.RUnlock()

	span.SetAttributes(attribute.Int("departures.matched", len(matches)))
	ir.finish(ctx, span, "find_by_destination", start, err)
	return matches, err
}

func (ir *InstrumentedRegister) Sorted(ctx context.Context) []Departure {
	ctx, span := ir.telemetry.Tracer().Start(ctx, "departure_register.sorted")
	defer span.End()
	start := time.Now()

	ir.mu.RLock()
	sorted := ir.register.Sorted()
	ir.mu.RUnlock()

	span.SetAttributes(attribute.Int("departures.count", len(sorted)))
	ir.finish(ctx, span, "sorted", start, nil)
	return sorted
}

func (ir *InstrumentedRegister) Destinations(ctx context.Context) []string {
	ctx, span := ir.telemetry.Tracer().Start(ctx, "departure_register.destinations")
	defer span.End()
	start := time.Now()

	ir.mu.RLock()
	names := ir.register.Destinations()
	ir.mu.RUnlock()

	span.SetAttributes(attribute.Int("destinations.count", len(names)))
	ir.finish(ctx, span, "destinations", start, nil)
	return names
}

// Count takes only the read lock and records no span; the metrics endpoint
// polls it on every scrape.
func (ir *InstrumentedRegister) Count(ctx context.Context) int {
	ir.mu.RLock()
	defer ir.mu.RUnlock()
	return ir.register.Count()
}

func (ir *InstrumentedRegister) MinutesUntilNextDeparture(ctx context.Context, now Clock) (int, error) {
	ctx, span := ir.telemetry.Tracer().Start(ctx, "departure_register.minutes_until_next",
		trace.WithAttributes(attribute.String("now", now.String())))
	defer span.End()
	start := time.Now()

	ir.mu.RLock()
	minutes, err := ir.register.MinutesUntilNextDeparture(now)
	ir.mu.RUnlock()

	span.SetAttributes(attribute.Int("minutes_until_next", minutes))
	ir.finish(ctx, span, "minutes_until_next", start, err)
	return minutes, err
}

func (ir *InstrumentedRegister) InterquartileRange(ctx context.Context) (Clock, Clock, error) {
	ctx, span := ir.telemetry.Tracer().Start(ctx, "departure_register.interquartile_range")
	defer span.End()
	start := time.Now()

	ir.mu.RLock()
	q1, q3, err := ir.register.InterquartileRange()
	ir.mu.RUnlock()

	if err == nil {
		span.SetAttributes(
			attribute.String("iqr.q1", q1.String()),
			attribute.String("iqr.q3", q3.String()),
		)
	}
	ir.finish(ctx, span, "interquartile_range", start, err)
	return q1, q3, err
}

func (ir *InstrumentedRegister) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()

	labels := []attribute.KeyValue{
		attribute.String("operation", operation),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		labels = append(labels, attribute.String("status", "failed"))
	} else {
		labels = append(labels, attribute.String("status", "success"))
	}

	ir.operations.Add(ctx, 1, metric.WithAttributes(labels...))
	ir.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))
}
