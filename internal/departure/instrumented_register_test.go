package departure

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTelemetry(t *testing.T) (*TelemetryProvider, *tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	tp := NewTelemetryProviderFrom("departure-board-test",
		sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)),
		sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return tp, recorder, reader
}

func spanNames(recorder *tracetest.SpanRecorder) []string {
	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	return names
}

func sumValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestInstrumentedRegisterIntegration(t *testing.T) {
	telemetry, recorder, reader := newRecordingTelemetry(t)

	ir, err := NewInstrumentedRegister(telemetry)
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, ir.Add(ctx, MustClock(10, 30), "L1", 1, "Bergen", 1, 3))
	require.NoError(t, ir.Add(ctx, MustClock(12, 30), "L2", 2, "Oslo", 0, 2))
	require.NoError(t, ir.Add(ctx, MustClock(15, 30), "L3", 3, "Bergen", 0, -1))
	assert.Equal(t, 3, ir.Count(ctx))

	sorted := ir.Sorted(ctx)
	require.Len(t, sorted, 3)
	assert.Equal(t, 1, sorted[0].ID())

	found, ok := ir.FindByID(ctx, 2)
	require.True(t, ok)
	assert.Equal(t, "Oslo", found.Destination())

	matches, err := ir.FindByDestination(ctx, "BERGEN")
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	require.NoError(t, ir.AssignDelay(ctx, 1, 5))
	require.NoError(t, ir.AssignTrack(ctx, 1, -1))
	found, _ = ir.FindByID(ctx, 1)
	assert.Equal(t, "10:35", found.DelayedTime().String())
	assert.False(t, found.HasTrack())

	removed, err := ir.RemoveBefore(ctx, MustClock(11, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	require.NoError(t, ir.RemoveByID(ctx, 2))
	assert.Equal(t, 1, ir.Count(ctx))

	assert.Equal(t, int64(1), sumValue(t, reader, "departure_board_departures"))
	assert.Equal(t, int64(1), sumValue(t, reader, "departures_purged_total"))

	names := spanNames(recorder)
	assert.Contains(t, names, "departure_register.add")
	assert.Contains(t, names, "departure_register.remove_before")
	assert.Contains(t, names, "departure_register.assign_delay")
}

func TestInstrumentedRegisterRecordsErrors(t *testing.T) {
	telemetry, recorder, _ := newRecordingTelemetry(t)

	ir, err := NewInstrumentedRegister(telemetry)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, ir.Add(ctx, MustClock(10, 30), "L1", 1, "Bergen", 0, 3))
	err = ir.Add(ctx, MustClock(10, 30), "L2", 2, "Oslo", 0, 3)
	require.ErrorIs(t, err, ErrTrackConflict)

	var failed int
	for _, s := range recorder.Ended() {
		if s.Name() == "departure_register.add" && s.Status().Code == codes.Error {
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	_, _, err = ir.InterquartileRange(ctx)
	require.NoError(t, err)

	minutes, err := ir.MinutesUntilNextDeparture(ctx, MustClock(10, 0))
	require.NoError(t, err)
	assert.Equal(t, 30, minutes)
}

func TestInstrumentedRegisterConcurrentAccess(t *testing.T) {
	telemetry, _, _ := newRecordingTelemetry(t)

	ir, err := NewInstrumentedRegister(telemetry)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			_ = ir.Add(ctx, MustClock(id%24, 0), "L1", id, "Oslo", 0, UnassignedTrack)
		}(i)
		go func() {
			defer wg.Done()
			_ = ir.Count(ctx)
			_ = ir.Sorted(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, ir.Count(ctx))
}
