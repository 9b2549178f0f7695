package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	catalogapp "github.com/erp/stockledger/internal/application/catalog"
	importapp "github.com/erp/stockledger/internal/application/import"
	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/cache"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/event"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/erp/stockledger/internal/infrastructure/storage"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// appOptions are the global command line overrides
type appOptions struct {
	sqlitePath string // non-empty switches to a local sqlite database
	eventsPath string // non-empty appends every domain event as a JSON line
}

// app is the wired ledger runtime shared by every subcommand
type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *persistence.Database

	ledger    *appinv.LedgerService
	variants  *catalogapp.VariantService
	movements *appinv.MovementQueryService
	reports   *appinv.ReportService
	documents *appinv.StockDocumentService
	importer  *importapp.ImportService
	metrics   *telemetry.LedgerMetrics
	bus       *event.InMemoryEventBus

	sourcesOnce sync.Once
	sources     *storage.Router
	sourcesErr  error

	closers []func(context.Context) error
}

// newApp wires telemetry, the database and the ledger services. Close must be
// called on the returned app even when a later step of the command fails.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions, log *zap.Logger) (a *app, err error) {
	if opts.sqlitePath != "" {
		cfg.Database.Driver = persistence.DriverSQLite
		cfg.Database.SQLitePath = opts.sqlitePath
	}

	a = &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
			a = nil
		}
	}()

	tp, mp, err := a.setupTelemetry(ctx)
	if err != nil {
		return nil, err
	}

	a.db, err = persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(logger.NewGormLogger(a.log, logger.MapGormLogLevel(cfg.Log.Level),
			logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		)),
	)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return a.db.Close() })

	if a.db.Driver == persistence.DriverSQLite {
		if err := a.db.AutoMigrate(); err != nil {
			return nil, err
		}
	}
	if err := a.instrumentDatabase(ctx, tp, mp); err != nil {
		return nil, err
	}

	a.metrics, err = telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:         mp.Meter("stockledger"),
		Logger:        a.log,
		StockProvider: telemetry.NewGormStockLevelProvider(a.db.DB),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger metrics: %w", err)
	}
	if mp.IsEnabled() {
		a.metrics.StartPeriodicCollection(ctx)
	}
	a.onClose(func(context.Context) error {
		a.metrics.Stop()
		return nil
	})

	a.ledger = appinv.NewLedgerService(persistence.NewGormTransactionScope(a.db.DB), appinv.LedgerConfig{
		MaxRetries:          cfg.Ledger.MaxRetries,
		RetryBackoff:        cfg.Ledger.RetryBackoff,
		IdempotencyTTL:      cfg.Ledger.IdempotencyTTL,
		SKUMaxAttempts:      cfg.Ledger.SKUMaxAttempts,
		DefaultReorderLevel: cfg.Ledger.DefaultReorderLevel,
	})
	a.ledger.SetMetrics(a.metrics)

	store, err := cache.NewIdempotencyStoreFactory(cfg, cache.WithLogger(a.log)).CreateStore(ctx)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return store.Close() })
	a.ledger.SetIdempotencyStore(store)

	if err := a.setupEvents(ctx, store, opts.eventsPath); err != nil {
		return nil, err
	}
	a.ledger.SetEventPublisher(a.bus)

	variantRepo := persistence.NewGormVariantRepository(a.db.DB)
	a.variants = catalogapp.NewVariantService(a.ledger, variantRepo)
	a.movements = appinv.NewMovementQueryService(persistence.NewGormMovementRepository(a.db.DB))
	a.reports = appinv.NewReportService(persistence.NewGormStockReportRepository(a.db.DB), variantRepo)
	a.documents = appinv.NewStockDocumentService(a.ledger, persistence.NewGormStockDocumentRepository(a.db.DB))
	a.importer = importapp.NewImportService(a.ledger, importapp.Config{
		MaxErrors:   cfg.Import.MaxErrors,
		Actor:       cfg.Import.BatchActor,
		MaxFileSize: cfg.Import.MaxFileSize,
	})
	a.importer.SetMetrics(a.metrics)

	return a, nil
}

// setupTelemetry starts the trace, metric and log providers and the profiler.
// With OTLP logs on, a.log is replaced by a logger teeing into the bridge.
func (a *app) setupTelemetry(ctx context.Context) (*telemetry.TracerProvider, *telemetry.MeterProvider, error) {
	tc := a.cfg.Telemetry

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tc.LogsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, a.log)
	if err != nil {
		return nil, nil, err
	}
	a.onClose(lp.Shutdown)
	if lp.IsEnabled() {
		otlpCore := lp.ZapCore(logger.ParseLevel(a.cfg.Log.Level))
		a.log = a.log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, otlpCore)
		}))
	}

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, a.log)
	if err != nil {
		return nil, nil, err
	}
	a.onClose(tp.Shutdown)

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tc.MetricsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ExportInterval:    tc.MetricsInterval,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, a.log)
	if err != nil {
		return nil, nil, err
	}
	a.onClose(mp.Shutdown)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         a.cfg.Profiling.Enabled,
		ServerAddress:   a.cfg.Profiling.ServerAddress,
		ApplicationName: tc.ServiceName,
	}, a.log)
	if err != nil {
		return nil, nil, err
	}
	a.onClose(func(context.Context) error { return profiler.Stop() })
	if profiler.IsEnabled() {
		if err := tp.EnableSpanProfiles(); err != nil {
			return nil, nil, err
		}
	}
	return tp, mp, nil
}

func (a *app) instrumentDatabase(ctx context.Context, tp *telemetry.TracerProvider, mp *telemetry.MeterProvider) error {
	tc := a.cfg.Telemetry
	system := "postgresql"
	if a.db.Driver == persistence.DriverSQLite {
		system = "sqlite"
	}

	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         tp.IsEnabled() && tc.DBTraceEnabled,
		LogFullSQL:      tc.DBLogFullSQL,
		SlowQueryThresh: tc.DBSlowQueryThresh,
		DBSystem:        system,
	}, a.log)
	if err := tracing.RegisterOtelGorm(a.db.DB); err != nil {
		return err
	}

	dbCfg := telemetry.DefaultDBMetricsConfig()
	dbCfg.Enabled = tc.MetricsEnabled
	dbCfg.SlowQueryThreshold = tc.DBSlowQueryThresh
	dbMetrics, err := telemetry.RegisterDBMetrics(a.db.DB, mp, dbCfg, a.log)
	if err != nil {
		return fmt.Errorf("failed to register database metrics: %w", err)
	}
	if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(ctx)
		a.onClose(func(context.Context) error {
			dbMetrics.Stop()
			return nil
		})
	}
	return nil
}

// setupEvents starts the in-process bus. Low-stock alerts are deduplicated per
// variant and status for the configured cooldown.
func (a *app) setupEvents(ctx context.Context, store shared.IdempotencyStore, eventsPath string) error {
	a.bus = event.NewInMemoryEventBus(a.log)

	alerts := appinv.NewLowStockHandler(a.log).
		WithNotifier(appinv.NewLoggingStockAlertNotifier(a.log)).
		WithRecorder(a.metrics)
	a.bus.Subscribe(event.NewIdempotentHandler(alerts, store, a.log,
		event.WithKeyFunc(appinv.AlertKey),
		event.WithIdempotencyConfig(shared.IdempotencyConfig{
			TTL:     a.cfg.Ledger.AlertCooldown,
			Enabled: a.cfg.Ledger.AlertCooldown > 0,
		}),
	))

	if eventsPath != "" {
		f, err := os.OpenFile(eventsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open event log: %w", err)
		}
		a.onClose(func(context.Context) error { return f.Close() })
		a.bus.Subscribe(event.NewEventLogHandler(f))
	}

	if err := a.bus.Start(ctx); err != nil {
		return err
	}
	a.onClose(a.bus.Stop)
	return nil
}

// importSources returns the location router. The S3 client is only built
// the first time an import needs it.
func (a *app) importSources(ctx context.Context, location string) (*storage.Router, error) {
	if !storage.IsS3(location) {
		return storage.NewRouter(nil), nil
	}
	a.sourcesOnce.Do(func() {
		remote, err := storage.NewS3ImportSource(ctx, a.cfg.Storage,
			storage.WithLogger(a.log),
			storage.WithMaxSize(a.cfg.Import.MaxFileSize),
		)
		if err != nil {
			a.sourcesErr = err
			return
		}
		a.sources = storage.NewRouter(remote)
	})
	return a.sources, a.sourcesErr
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases everything newApp acquired, newest first
func (a *app) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var errs []error
	for _, fn := range slices.Backward(a.closers) {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
