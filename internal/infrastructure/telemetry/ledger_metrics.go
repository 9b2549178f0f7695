package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a metrics set is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// StockLevelProvider reports how many live variants sit in each stock status
type StockLevelProvider interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// LedgerMetricsConfig configures NewLedgerMetrics
type LedgerMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // default 5m
	StockProvider   StockLevelProvider
}

// LedgerMetrics records ledger activity. It satisfies the application's
// ledger metrics and stock alert recorder interfaces.
type LedgerMetrics struct {
	logger *zap.Logger

	adjustmentsTotal *Counter
	unitsMovedTotal  *Counter
	adjustDuration   *Histogram
	conflictsTotal   *Counter
	failuresTotal    *Counter
	alertsTotal      *Counter
	importRowsTotal  *Counter
	variantsByStatus *Gauge

	provider        StockLevelProvider
	collectInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
	startOnce       sync.Once
}

// NewLedgerMetrics registers the ledger instruments on cfg.Meter
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.CollectInterval <= 0 {
		cfg.CollectInterval = 5 * time.Minute
	}

	m := &LedgerMetrics{
		logger:          cfg.Logger,
		provider:        cfg.StockProvider,
		collectInterval: cfg.CollectInterval,
		stopCh:          make(chan struct{}),
	}

	var err error
	if m.adjustmentsTotal, err = NewCounter(cfg.Meter, "stock_adjustments_total", "Committed stock movements", "{movement}"); err != nil {
		return nil, err
	}
	if m.unitsMovedTotal, err = NewCounter(cfg.Meter, "stock_units_moved_total", "Absolute units moved by committed movements", "{unit}"); err != nil {
		return nil, err
	}
	if m.adjustDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "stock_adjustment_duration_seconds",
		Description: "Latency of a committed stock adjustment including retries",
		Unit:        "s",
		Boundaries:  LedgerDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.conflictsTotal, err = NewCounter(cfg.Meter, "stock_concurrency_conflicts_total", "Optimistic lock conflicts that triggered a retry", "{conflict}"); err != nil {
		return nil, err
	}
	if m.failuresTotal, err = NewCounter(cfg.Meter, "stock_operation_failures_total", "Ledger operations that returned an error", "{failure}"); err != nil {
		return nil, err
	}
	if m.alertsTotal, err = NewCounter(cfg.Meter, "stock_alerts_total", "Low and out of stock alerts raised", "{alert}"); err != nil {
		return nil, err
	}
	if m.importRowsTotal, err = NewCounter(cfg.Meter, "stock_import_rows_total", "Import rows by outcome", "{row}"); err != nil {
		return nil, err
	}
	if m.variantsByStatus, err = NewGauge(cfg.Meter, "stock_variants_by_status", "Live variants per stock status", "{variant}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordAdjustment counts one committed movement
func (m *LedgerMetrics) RecordAdjustment(ctx context.Context, movementType string, change int, duration time.Duration) {
	attr := AttrMovementType.String(movementType)
	m.adjustmentsTotal.Inc(ctx, attr)
	m.unitsMovedTotal.Add(ctx, int64(abs(change)), attr)
	m.adjustDuration.RecordDuration(ctx, duration, attr)
}

// RecordConflict counts a retried version conflict
func (m *LedgerMetrics) RecordConflict(ctx context.Context, op string) {
	m.conflictsTotal.Inc(ctx, AttrOperation.String(op))
}

// RecordFailure counts a failed operation by error code
func (m *LedgerMetrics) RecordFailure(ctx context.Context, op, code string) {
	m.failuresTotal.Inc(ctx, AttrOperation.String(op), AttrErrorCode.String(code))
}

// RecordStockAlert counts a raised stock alert
func (m *LedgerMetrics) RecordStockAlert(ctx context.Context, alertType string) {
	m.alertsTotal.Inc(ctx, AttrAlertType.String(alertType))
}

// RecordImportRows counts import rows for one outcome (created, adjusted, unchanged, failed)
func (m *LedgerMetrics) RecordImportRows(ctx context.Context, result string, count int) {
	if count <= 0 {
		return
	}
	m.importRowsTotal.Add(ctx, int64(count), AttrImportResult.String(result))
}

// StartPeriodicCollection samples stock status counts until ctx ends or Stop is called
func (m *LedgerMetrics) StartPeriodicCollection(ctx context.Context) {
	if m.provider == nil {
		m.logger.Debug("No stock level provider, skipping periodic collection")
		return
	}
	m.startOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(m.collectInterval)
			defer ticker.Stop()
			m.collect(ctx)
			for {
				select {
				case <-ticker.C:
					m.collect(ctx)
				case <-m.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	})
}

func (m *LedgerMetrics) collect(ctx context.Context) {
	counts, err := m.provider.CountByStatus(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect stock status counts", zap.Error(err))
		return
	}
	for status, n := range counts {
		m.variantsByStatus.Record(ctx, n, AttrStockStatus.String(status))
	}
}

// Stop ends periodic collection. Safe to call more than once.
func (m *LedgerMetrics) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
