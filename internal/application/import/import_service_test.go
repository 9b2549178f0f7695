package importapp_test

import (
	"context"
	"strings"
	"testing"

	importapp "github.com/erp/stockledger/internal/application/import"
	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/config"
	csvimport "github.com/erp/stockledger/internal/infrastructure/import"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type importFixture struct {
	db         *gorm.DB
	ledger     *appinv.LedgerService
	service    *importapp.ImportService
	products   *persistence.GormProductRepository
	variants   *persistence.GormVariantRepository
	categories *persistence.GormCategoryRepository
	movements  *persistence.GormMovementRepository
	rows       map[string]int
}

func (f *importFixture) RecordImportRows(_ context.Context, result string, count int) {
	f.rows[result] += count
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	name := "file:" + strings.ReplaceAll(uuid.NewString(), "-", "") + "?mode=memory&cache=shared"
	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: persistence.DriverSQLite, SQLitePath: name})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	ledger := appinv.NewLedgerService(persistence.NewGormTransactionScope(db.DB), appinv.DefaultLedgerConfig())
	f := &importFixture{
		db:         db.DB,
		ledger:     ledger,
		service:    importapp.NewImportService(ledger, importapp.DefaultConfig()),
		products:   persistence.NewGormProductRepository(db.DB),
		variants:   persistence.NewGormVariantRepository(db.DB),
		categories: persistence.NewGormCategoryRepository(db.DB),
		movements:  persistence.NewGormMovementRepository(db.DB),
		rows:       map[string]int{},
	}
	f.service.SetMetrics(f)
	return f
}

// seed creates a product filed under the default category with one variant
func (f *importFixture) seed(t *testing.T, productName, variation, size string, qty int) *appinv.VariantResponse {
	t.Helper()
	ctx := context.Background()
	var productID uuid.UUID
	err := f.ledger.InTransaction(ctx, "seed", func(ctx context.Context, tx *appinv.LedgerTx) error {
		p, err := tx.Repos().ProductRepo().FindByName(ctx, productName)
		if err == nil {
			productID = p.ID
			return nil
		}
		p, err = catalog.NewProduct(productName)
		if err != nil {
			return err
		}
		c, err := tx.Repos().CategoryRepo().FindOrCreateCategory(ctx, "")
		if err != nil {
			return err
		}
		sc, err := tx.Repos().CategoryRepo().FindOrCreateSubCategory(ctx, c.ID, "")
		if err != nil {
			return err
		}
		p.CategoryID, p.SubCategoryID = &c.ID, &sc.ID
		productID = p.ID
		return tx.Repos().ProductRepo().Create(ctx, p)
	})
	require.NoError(t, err)

	res, err := f.ledger.CreateVariantWithInitialStock(ctx, appinv.CreateVariantRequest{
		ProductID:       productID,
		Name:            variation,
		Size:            size,
		InitialQuantity: qty,
	})
	require.NoError(t, err)
	return &res.Variant
}

func (f *importFixture) movementsOf(t *testing.T, variantID uuid.UUID) []inventory.StockMovement {
	t.Helper()
	filter := inventory.MovementFilter{Filter: shared.DefaultFilter(), VariantID: &variantID}
	list, _, err := f.movements.FindAll(context.Background(), filter)
	require.NoError(t, err)
	return list
}

func intPtr(n int) *int { return &n }

func TestProcessImportBatch_UpdatesMatchedSKUThroughLedger(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()
	v := f.seed(t, "Gold Ring", "Size 7", "7", 5)

	result, err := f.service.ProcessImportBatch(ctx, []importapp.ImportRow{{
		Line:            2,
		SKU:             v.SKU,
		StockQtyShipped: intPtr(50),
		StockOutShipped: intPtr(20),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalRows)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 0, result.Skipped)

	stored, err := f.variants.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, stored.QuantityInStock)
	assert.Equal(t, catalog.StockStatusInStock, stored.Status)

	movements := f.movementsOf(t, v.ID)
	require.Len(t, movements, 2)
	latest := movements[0]
	assert.Equal(t, inventory.MovementTypeAdjustment, latest.Type)
	assert.Equal(t, 5, latest.QuantityBefore)
	assert.Equal(t, 35, latest.QuantityChange)
	assert.Equal(t, 40, latest.QuantityAfter)
	assert.Equal(t, inventory.ReferenceTypeImportBatch, latest.ReferenceType)
	assert.Equal(t, result.BatchID, latest.ReferenceID)
	assert.Equal(t, "importer", latest.Actor)

	_, total, err := f.products.FindAll(ctx, catalog.ProductFilter{Filter: shared.DefaultFilter()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "no product may be created for a matched row")
	assert.Equal(t, 1, f.rows["updated"])
}

func TestProcessImportBatch_CreatesUnmatchedRows(t *testing.T) {
	f := newImportFixture(t)
	ctx := logger.WithActor(context.Background(), "alice")

	result, err := f.service.ProcessImportBatch(ctx, []importapp.ImportRow{
		{Line: 2, SKU: "SC-18-0001", ProductName: "Silver Chain", VariationName: "18 inch", Size: "18",
			Category: "Necklaces", SubCategory: "Chains", StockQtyShipped: intPtr(10), StockOutShipped: intPtr(3)},
		{Line: 3, SKU: "SC-20-0001", ProductName: "silver chain", VariationName: "20 inch", Size: "20",
			StockQtyShipped: intPtr(4), StockOutShipped: intPtr(9)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	first, err := f.variants.FindBySKU(ctx, "SC-18-0001")
	require.NoError(t, err)
	assert.Equal(t, 7, first.QuantityInStock)
	assert.Equal(t, catalog.StockStatusLowStock, first.Status)
	assert.Equal(t, "18 inch", first.Name)

	movements := f.movementsOf(t, first.ID)
	require.Len(t, movements, 1)
	assert.Equal(t, inventory.MovementTypeInitialStock, movements[0].Type)
	assert.Equal(t, "alice", movements[0].Actor)

	second, err := f.variants.FindBySKU(ctx, "SC-20-0001")
	require.NoError(t, err)
	assert.Equal(t, first.ProductID, second.ProductID, "product is found case-insensitively")
	assert.Equal(t, 0, second.QuantityInStock)
	assert.Equal(t, catalog.StockStatusOutOfStock, second.Status)

	product, err := f.products.FindByID(ctx, first.ProductID)
	require.NoError(t, err)
	category, err := f.categories.FindCategoryByID(ctx, *product.CategoryID)
	require.NoError(t, err)
	assert.Equal(t, "Necklaces", category.Name)
}

func TestProcessImportBatch_ResolvesByProductAndVariation(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()
	size7 := f.seed(t, "Gold Ring", "Size 7", "7", 5)
	size8 := f.seed(t, "Gold Ring", "Size 8", "8", 5)

	result, err := f.service.ProcessImportBatch(ctx, []importapp.ImportRow{
		{Line: 2, ProductName: "Gold Ring", VariationName: "size 8", StockQtyShipped: intPtr(12)},
		{Line: 3, ProductName: "Gold Ring", StockQtyShipped: intPtr(30), StockOutShipped: intPtr(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Updated)

	got8, err := f.variants.FindByID(ctx, size8.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got8.QuantityInStock)

	got7, err := f.variants.FindByID(ctx, size7.ID)
	require.NoError(t, err)
	assert.Equal(t, 29, got7.QuantityInStock, "first variant takes a row without variation")
}

func TestProcessImportBatch_PartialUpdate(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()
	v := f.seed(t, "Gold Ring", "Size 7", "7", 5)

	result, err := f.service.ProcessImportBatch(ctx, []importapp.ImportRow{{
		Line:         2,
		SKU:          v.SKU,
		Category:     "Rings",
		ReorderLevel: intPtr(6),
		Notes:        "restocked from supplier",
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	stored, err := f.variants.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.QuantityInStock, "no stock columns leaves quantity alone")
	assert.Equal(t, 6, stored.ReorderLevel)
	assert.Equal(t, catalog.StockStatusLowStock, stored.Status)
	assert.Equal(t, "restocked from supplier", stored.Notes)
	assert.Equal(t, v.SKU, stored.SKU)
	assert.Len(t, f.movementsOf(t, v.ID), 1)

	product, err := f.products.FindByID(ctx, stored.ProductID)
	require.NoError(t, err)
	category, err := f.categories.FindCategoryByID(ctx, *product.CategoryID)
	require.NoError(t, err)
	assert.Equal(t, "Rings", category.Name)
}

func TestProcessImportBatch_IsolatesRowFailures(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()
	v := f.seed(t, "Gold Ring", "Size 7", "7", 5)

	result, err := f.service.ProcessImportBatch(ctx, []importapp.ImportRow{
		{Line: 2, ProductName: "Pearl Stud", StockQtyShipped: intPtr(3)},
		{Line: 3, SKU: v.SKU, StockQtyShipped: intPtr(9)},
		{Line: 4, SKU: "NEW-0001", StockQtyShipped: intPtr(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 2, result.Skipped)

	require.Len(t, result.Errors, 2)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, csvimport.ErrCodeValidation, result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, "sku")
	assert.Equal(t, 4, result.Errors[1].Row)

	stored, err := f.variants.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, stored.QuantityInStock)
	assert.Equal(t, 2, f.rows["skipped"])
}

func TestProcessImportBatch_FailsWhenEveryRowFails(t *testing.T) {
	f := newImportFixture(t)

	result, err := f.service.ProcessImportBatch(context.Background(), []importapp.ImportRow{
		{Line: 2, ProductName: "Pearl Stud"},
		{Line: 3, SKU: "X-0001"},
	})
	assert.ErrorIs(t, err, importapp.ErrAllRowsFailed)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, result.Errors, 2)
}

func TestProcessImportBatch_EmptyBatch(t *testing.T) {
	f := newImportFixture(t)

	result, err := f.service.ProcessImportBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalRows)
}

func TestImportCSV(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()
	v := f.seed(t, "Gold Ring", "Size 7", "7", 5)

	sheet := "\xEF\xBB\xBFSKU,Product,Variation,Category,Qty Shipped,Stock Out\n" +
		v.SKU + ",Gold Ring,Size 7,,50,20\n" +
		"PS-0001,Pearl Stud,,Earrings,12,2\n" +
		"BAD-0001,Broken,,,many,\n" +
		"\n"

	result, err := f.service.ImportCSV(ctx, strings.NewReader(sheet), "sheet.csv")
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 4, result.Errors[0].Row)
	assert.Equal(t, csvimport.ErrCodeInvalidType, result.Errors[0].Code)

	stored, err := f.variants.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, stored.QuantityInStock)

	created, err := f.variants.FindBySKU(ctx, "PS-0001")
	require.NoError(t, err)
	assert.Equal(t, 10, created.QuantityInStock)
}

func TestImportCSV_RejectsUnusableHeader(t *testing.T) {
	f := newImportFixture(t)

	_, err := f.service.ImportCSV(context.Background(), strings.NewReader("colour,qty\nred,1\n"), "sheet.csv")
	assert.ErrorIs(t, err, shared.ErrValidationFailed)

	_, err = f.service.ImportCSV(context.Background(), strings.NewReader(""), "empty.csv")
	assert.ErrorIs(t, err, csvimport.ErrEmptyFile)
}
