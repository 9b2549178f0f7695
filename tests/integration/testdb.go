// Package integration runs the stock ledger against a real PostgreSQL started
// with testcontainers. Every test here is skipped under -short.
package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/migration"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

const (
	testDBName     = "stockledger_test"
	testDBUser     = "postgres"
	testDBPassword = "admin123"
)

var (
	// Shared container for all tests in the package
	sharedContainer   testcontainers.Container
	sharedContainerMu sync.Mutex
	sharedDBConfig    config.DatabaseConfig
)

// TestDB is a migrated database plus the container behind it
type TestDB struct {
	*persistence.Database
	Config    config.DatabaseConfig
	Container testcontainers.Container
	t         *testing.T
}

// NewSharedTestDB connects to a PostgreSQL container shared by the package,
// starting it and applying the embedded migrations on first use. Tests must
// call CleanTables before seeding.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	skipShort(t)

	container, cfg := func() (testcontainers.Container, config.DatabaseConfig) {
		sharedContainerMu.Lock()
		defer sharedContainerMu.Unlock()
		if sharedContainer == nil {
			container, cfg := startPostgres(t)
			runMigrations(t, cfg)
			sharedContainer, sharedDBConfig = container, cfg
		}
		return sharedContainer, sharedDBConfig
	}()

	tdb := &TestDB{Database: connect(t, cfg), Config: cfg, Container: container, t: t}
	t.Cleanup(func() {
		if err := tdb.Database.Close(); err != nil {
			t.Logf("Warning: failed to close database: %v", err)
		}
	})
	return tdb
}

// CleanTables truncates every table except the migration bookkeeping
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename != 'schema_migrations'
	`).Scan(&tables).Error
	require.NoError(tdb.t, err, "Failed to get table names")

	for _, table := range tables {
		// TRUNCATE does not fire the row-level immutability trigger
		err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error
		require.NoError(tdb.t, err, "Failed to truncate %s", table)
	}
}

// CleanupSharedContainer terminates the shared container. Call it from TestMain.
func CleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	if sharedContainer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = sharedContainer.Terminate(ctx)
		sharedContainer = nil
		sharedDBConfig = config.DatabaseConfig{}
	}
}

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
}

func startPostgres(t *testing.T) (testcontainers.Container, config.DatabaseConfig) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(testDBName),
		tcpostgres.WithUsername(testDBUser),
		tcpostgres.WithPassword(testDBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	host, err := container.Host(ctx)
	require.NoError(t, err, "Failed to get container host")
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err, "Failed to get mapped port")

	return container, config.DatabaseConfig{
		Driver:          persistence.DriverPostgres,
		Host:            host,
		Port:            port.Int(),
		User:            testDBUser,
		Password:        testDBPassword,
		DBName:          testDBName,
		SSLMode:         "disable",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5,
		ConnMaxIdleTime: 1,
	}
}

func connect(t *testing.T, cfg config.DatabaseConfig) *persistence.Database {
	t.Helper()
	db, err := persistence.NewDatabase(&cfg)
	require.NoError(t, err, "Failed to connect to database")
	return db
}

// runMigrations applies the migrations embedded in the binary
func runMigrations(t *testing.T, cfg config.DatabaseConfig) {
	t.Helper()

	db := connect(t, cfg)
	defer db.Close()
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)

	m, err := migration.New(sqlDB, "", zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")
}
