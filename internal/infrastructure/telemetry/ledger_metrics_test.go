package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func newManualMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

type stubStockLevels struct {
	mu     sync.Mutex
	calls  int
	counts map[string]int64
	err    error
}

func (s *stubStockLevels) CountByStatus(context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.counts, s.err
}

func (s *stubStockLevels) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestNewLedgerMetrics_RequiresMeter(t *testing.T) {
	_, err := NewLedgerMetrics(LedgerMetricsConfig{})
	assert.ErrorIs(t, err, ErrMeterNil)
}

func TestLedgerMetrics_Records(t *testing.T) {
	reader, provider := newManualMeter(t)
	m, err := NewLedgerMetrics(LedgerMetricsConfig{Meter: provider.Meter("ledger"), Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordAdjustment(ctx, "sale", -5, 12*time.Millisecond)
	m.RecordAdjustment(ctx, "restock", 20, 3*time.Millisecond)
	m.RecordAdjustment(ctx, "sale", -1, time.Millisecond)
	m.RecordConflict(ctx, "adjust_stock")
	m.RecordFailure(ctx, "adjust_stock", "NOT_FOUND")
	m.RecordStockAlert(ctx, "low_stock")
	m.RecordImportRows(ctx, "created", 3)
	m.RecordImportRows(ctx, "failed", 0)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, got["stock_adjustments_total"], "movement_type", "sale"))
	assert.Equal(t, int64(6), sumFor(t, got["stock_units_moved_total"], "movement_type", "sale"))
	assert.Equal(t, int64(20), sumFor(t, got["stock_units_moved_total"], "movement_type", "restock"))
	assert.Equal(t, int64(1), sumFor(t, got["stock_concurrency_conflicts_total"], "operation", "adjust_stock"))
	assert.Equal(t, int64(1), sumFor(t, got["stock_operation_failures_total"], "error_code", "NOT_FOUND"))
	assert.Equal(t, int64(1), sumFor(t, got["stock_alerts_total"], "alert_type", "low_stock"))
	assert.Equal(t, int64(3), sumFor(t, got["stock_import_rows_total"], "import_result", "created"))
	assert.Zero(t, sumFor(t, got["stock_import_rows_total"], "import_result", "failed"))

	hist, ok := got["stock_adjustment_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestLedgerMetrics_PeriodicCollection(t *testing.T) {
	reader, provider := newManualMeter(t)
	stub := &stubStockLevels{counts: map[string]int64{"in_stock": 8, "low_stock": 2, "out_of_stock": 1}}
	m, err := NewLedgerMetrics(LedgerMetricsConfig{
		Meter:           provider.Meter("ledger"),
		Logger:          zaptest.NewLogger(t),
		CollectInterval: time.Hour,
		StockProvider:   stub,
	})
	require.NoError(t, err)

	m.StartPeriodicCollection(context.Background())
	m.StartPeriodicCollection(context.Background())
	defer m.Stop()

	var gauge metricdata.Gauge[int64]
	require.Eventually(t, func() bool {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(context.Background(), &rm); err != nil {
			return false
		}
		for _, sm := range rm.ScopeMetrics {
			for _, metric := range sm.Metrics {
				if g, ok := metric.Data.(metricdata.Gauge[int64]); ok && metric.Name == "stock_variants_by_status" && len(g.DataPoints) == 3 {
					gauge = g
					return true
				}
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	byStatus := map[string]int64{}
	for _, dp := range gauge.DataPoints {
		v, _ := dp.Attributes.Value(AttrStockStatus)
		byStatus[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"in_stock": 8, "low_stock": 2, "out_of_stock": 1}, byStatus)
	assert.Equal(t, 1, stub.Calls())

	m.Stop()
	m.Stop()
}

func TestLedgerMetrics_CollectErrorIsLogged(t *testing.T) {
	_, provider := newManualMeter(t)
	stub := &stubStockLevels{err: errors.New("db down")}
	m, err := NewLedgerMetrics(LedgerMetricsConfig{Meter: provider.Meter("ledger"), StockProvider: stub})
	require.NoError(t, err)

	assert.NotPanics(t, func() { m.collect(context.Background()) })
	assert.Equal(t, 1, stub.Calls())
}
