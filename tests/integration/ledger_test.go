package integration

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	catalogapp "github.com/erp/stockledger/internal/application/catalog"
	importapp "github.com/erp/stockledger/internal/application/import"
	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/event"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/erp/stockledger/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	code := m.Run()
	CleanupSharedContainer()
	os.Exit(code)
}

// ledgerFixture wires the services over one database
type ledgerFixture struct {
	db        *TestDB
	ledger    *appinv.LedgerService
	products  *catalogapp.ProductService
	variants  *catalogapp.VariantService
	documents *appinv.StockDocumentService
	reports   *appinv.ReportService
	importer  *importapp.ImportService
	events    *testutil.MockEventHandler
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	db := NewSharedTestDB(t)
	db.CleanTables()

	cfg := appinv.DefaultLedgerConfig()
	cfg.RetryBackoff = time.Millisecond
	cfg.MaxRetries = 20
	ledger := appinv.NewLedgerService(persistence.NewGormTransactionScope(db.DB), cfg)

	bus := event.NewInMemoryEventBus(zap.NewNop())
	events := testutil.NewMockEventHandler()
	bus.Subscribe(events)
	ctx := testutil.ContextWithTimeout(t, time.Minute)
	require.NoError(t, bus.Start(ctx))
	t.Cleanup(func() { _ = bus.Stop(ctx) })
	ledger.SetEventPublisher(bus)

	variantRepo := persistence.NewGormVariantRepository(db.DB)
	return &ledgerFixture{
		db:        db,
		ledger:    ledger,
		products:  catalogapp.NewProductService(ledger, persistence.NewGormProductRepository(db.DB), variantRepo),
		variants:  catalogapp.NewVariantService(ledger, variantRepo),
		documents: appinv.NewStockDocumentService(ledger, persistence.NewGormStockDocumentRepository(db.DB)),
		reports:   appinv.NewReportService(persistence.NewGormStockReportRepository(db.DB), variantRepo),
		importer:  importapp.NewImportService(ledger, importapp.Config{MaxErrors: 100, Actor: "importer"}),
		events:    events,
	}
}

func (f *ledgerFixture) importSheet(t *testing.T, sheet string) *importapp.ImportResult {
	t.Helper()
	ctx := testutil.ContextWithTimeout(t, 30*time.Second)
	result, err := f.importer.ImportCSV(ctx, strings.NewReader(sheet), "sheet.csv")
	require.NoError(t, err)
	return result
}

func (f *ledgerFixture) variant(t *testing.T, sku string) *appinv.VariantResponse {
	t.Helper()
	ctx := testutil.ContextWithTimeout(t, 10*time.Second)
	v, err := f.variants.GetVariantBySKU(ctx, sku)
	require.NoError(t, err)
	return v
}

func TestLedger_Postgres_ImportReconciles(t *testing.T) {
	f := newLedgerFixture(t)

	result := f.importSheet(t, "SKU,Product,Category,Qty Shipped,Stock Out\nPS-0001,Pearl Stud,Earrings,50,20\n")
	assert.Equal(t, 1, result.Imported)

	v := f.variant(t, "PS-0001")
	assert.Equal(t, 30, v.QuantityInStock)
	assert.Equal(t, catalog.StockStatusInStock, v.Status)

	ctx := testutil.ContextWithTimeout(t, 10*time.Second)
	byCategory, err := f.reports.QuantityByCategory(ctx)
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "Earrings", byCategory[0].CategoryName)
	assert.EqualValues(t, 30, byCategory[0].TotalQuantity)

	changed := f.events.OfType(catalog.EventTypeStockLevelChanged)
	require.NotEmpty(t, changed)
	last := changed[len(changed)-1].(*catalog.StockLevelChangedEvent)
	assert.Equal(t, "PS-0001", last.SKU)
	assert.Equal(t, 30, last.QuantityAfter)
}

func TestLedger_Postgres_ConcurrentAdds(t *testing.T) {
	f := newLedgerFixture(t)
	f.importSheet(t, "SKU,Product,Category,Qty Shipped,Stock Out\nGR-0001,Gold Ring,Rings,0,0\n")
	v := f.variant(t, "GR-0001")
	ctx := testutil.ContextWithTimeout(t, time.Minute)

	const workers = 100
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.AdjustStock(ctx, appinv.AdjustStockRequest{
				VariantID: v.ID,
				Mode:      appinv.AdjustModeAdd,
				Amount:    1,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, workers, f.variant(t, "GR-0001").QuantityInStock)

	count, err := persistence.NewGormMovementRepository(f.db.DB).CountByVariant(ctx, v.ID)
	require.NoError(t, err)
	assert.EqualValues(t, workers, count)
}

func TestLedger_Postgres_MovementsAreImmutable(t *testing.T) {
	f := newLedgerFixture(t)
	f.importSheet(t, "SKU,Product,Category,Qty Shipped,Stock Out\nGR-0001,Gold Ring,Rings,12,2\n")

	var count int64
	require.NoError(t, f.db.DB.Table("stock_movements").Count(&count).Error)
	require.Positive(t, count)

	err := f.db.DB.Exec("UPDATE stock_movements SET quantity_after = 999").Error
	require.Error(t, err)
	assert.Contains(t, err.Error(), "immutable")

	err = f.db.DB.Exec("DELETE FROM stock_movements").Error
	require.Error(t, err)
	assert.Contains(t, err.Error(), "immutable")

	var after int64
	require.NoError(t, f.db.DB.Table("stock_movements").Count(&after).Error)
	assert.Equal(t, count, after)
}

func TestLedger_Postgres_HardDeleteCascadesMovements(t *testing.T) {
	f := newLedgerFixture(t)
	f.importSheet(t, "SKU,Product,Category,Qty Shipped,Stock Out\nGR-0001,Gold Ring,Rings,12,2\nPS-0001,Pearl Stud,Earrings,5,0\n")
	gone := f.variant(t, "GR-0001")
	kept := f.variant(t, "PS-0001")
	ctx := testutil.ContextWithTimeout(t, 10*time.Second)
	movements := persistence.NewGormMovementRepository(f.db.DB)

	before, err := movements.CountByVariant(ctx, gone.ID)
	require.NoError(t, err)
	require.Positive(t, before)

	require.NoError(t, f.db.DB.Exec("DELETE FROM product_variants WHERE id = ?", gone.ID).Error)

	count, err := movements.CountByVariant(ctx, gone.ID)
	require.NoError(t, err)
	assert.Zero(t, count, "movements go with their variant")

	count, err = movements.CountByVariant(ctx, kept.ID)
	require.NoError(t, err)
	require.Positive(t, count)

	err = f.db.DB.Exec("DELETE FROM stock_movements WHERE variant_id = ?", kept.ID).Error
	require.Error(t, err, "a live variant's history stays immutable")
	assert.Contains(t, err.Error(), "immutable")
}

func TestLedger_Postgres_StockOutByPlatform(t *testing.T) {
	f := newLedgerFixture(t)
	f.importSheet(t, "SKU,Product,Category,Qty Shipped,Stock Out\nPS-0001,Pearl Stud,Earrings,50,20\n")
	v := f.variant(t, "PS-0001")
	ctx := testutil.ContextWithTimeout(t, 30*time.Second)

	out, err := f.documents.CreateStockOut(ctx, appinv.CreateStockOutRequest{
		Reason:      "weekend live sale",
		Items:       []appinv.StockOutItemRequest{{VariantID: v.ID, TikTok: 3, Shopee: 2}},
		Attribution: inventory.Attribution{Actor: "carol"},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, out.TotalQuantity)
	assert.Equal(t, "carol", out.Actor)
	assert.Equal(t, 25, f.variant(t, "PS-0001").QuantityInStock)

	totals, err := f.reports.StockOutByPlatform(ctx, inventory.ReportRange{})
	require.NoError(t, err)
	byPlatform := make(map[inventory.Platform]int64, len(totals))
	for _, pt := range totals {
		byPlatform[pt.Platform] = pt.Quantity
	}
	assert.EqualValues(t, 3, byPlatform[inventory.PlatformTikTok])
	assert.EqualValues(t, 2, byPlatform[inventory.PlatformShopee])
	assert.Zero(t, byPlatform[inventory.PlatformBazaar])
}
