package catalog_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	appcatalog "github.com/erp/stockledger/internal/application/catalog"
	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type fixture struct {
	ledger    *appinv.LedgerService
	products  *appcatalog.ProductService
	variants  *appcatalog.VariantService
	publisher *recordingPublisher
	movements *persistence.GormMovementRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := "file:" + strings.ReplaceAll(uuid.NewString(), "-", "") + "?mode=memory&cache=shared"
	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: persistence.DriverSQLite, SQLitePath: name})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	publisher := &recordingPublisher{}
	ledger := appinv.NewLedgerService(persistence.NewGormTransactionScope(db.DB), appinv.DefaultLedgerConfig())
	ledger.SetEventPublisher(publisher)

	variantRepo := persistence.NewGormVariantRepository(db.DB)
	return &fixture{
		ledger:    ledger,
		products:  appcatalog.NewProductService(ledger, persistence.NewGormProductRepository(db.DB), variantRepo),
		variants:  appcatalog.NewVariantService(ledger, variantRepo),
		publisher: publisher,
		movements: persistence.NewGormMovementRepository(db.DB),
	}
}

func (f *fixture) variant(t *testing.T, productID uuid.UUID, size, color string, qty int) appinv.VariantResponse {
	t.Helper()
	res, err := f.ledger.CreateVariantWithInitialStock(context.Background(), appinv.CreateVariantRequest{
		ProductID:       productID,
		Size:            size,
		Color:           color,
		InitialQuantity: qty,
	})
	require.NoError(t, err)
	return res.Variant
}

func TestProductService_CreateProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	product, err := f.products.CreateProduct(ctx, appcatalog.CreateProductRequest{Name: "Gold Ring"})
	require.NoError(t, err)
	assert.Equal(t, "GR", product.BasePrefix)
	assert.Equal(t, catalog.ProductStatusActive, product.Status)
	require.NotNil(t, product.CategoryID)
	require.NotNil(t, product.SubCategoryID)
	assert.Contains(t, f.publisher.types(), catalog.EventTypeProductCreated)

	_, err = f.products.CreateProduct(ctx, appcatalog.CreateProductRequest{Name: "gold ring"})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	_, err = f.products.CreateProduct(ctx, appcatalog.CreateProductRequest{Name: ""})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestProductService_RenameKeepsSKUs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	product, err := f.products.CreateProduct(ctx, appcatalog.CreateProductRequest{Name: "Gold Ring", Category: "Rings"})
	require.NoError(t, err)
	v := f.variant(t, product.ID, "7", "gold", 3)
	assert.Equal(t, "GR-7G-0001", v.SKU)

	renamed, err := f.products.RenameProduct(ctx, product.ID, "Rose Gold Ring")
	require.NoError(t, err)
	assert.Equal(t, "Rose Gold Ring", renamed.Name)
	assert.Equal(t, "GR", renamed.BasePrefix)

	got, err := f.variants.GetVariantBySKU(ctx, "GR-7G-0001")
	require.NoError(t, err, "sheets keyed on the old SKU still match")
	assert.Equal(t, v.ID, got.ID)
	assert.Equal(t, 3, got.QuantityInStock)

	next := f.variant(t, product.ID, "8", "gold", 1)
	assert.Equal(t, "GR-8G-0001", next.SKU, "new variants use the stored prefix")

	count, err := f.movements.CountByVariant(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "renaming must not write movements")

	_, err = f.products.RenameProduct(ctx, product.ID, " ")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestProductService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product, err := f.products.CreateProduct(ctx, appcatalog.CreateProductRequest{Name: "Pearl Necklace"})
	require.NoError(t, err)

	got, err := f.products.ChangeStatus(ctx, product.ID, appcatalog.ProductActionDeactivate)
	require.NoError(t, err)
	assert.Equal(t, catalog.ProductStatusInactive, got.Status)

	got, err = f.products.ChangeStatus(ctx, product.ID, appcatalog.ProductActionDiscontinue)
	require.NoError(t, err)
	assert.Equal(t, catalog.ProductStatusDiscontinued, got.Status)

	_, err = f.products.ChangeStatus(ctx, product.ID, appcatalog.ProductActionActivate)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Contains(t, f.publisher.types(), catalog.EventTypeProductStatusChanged)
}

func TestProductService_ArchiveAndRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product, err := f.products.CreateProduct(ctx, appcatalog.CreateProductRequest{Name: "Gold Ring"})
	require.NoError(t, err)
	early := f.variant(t, product.ID, "6", "", 2)
	kept := f.variant(t, product.ID, "7", "", 5)

	require.NoError(t, f.variants.ArchiveVariant(ctx, early.ID))
	time.Sleep(time.Millisecond)
	require.NoError(t, f.products.ArchiveProduct(ctx, product.ID))

	_, err = f.products.GetProduct(ctx, product.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.variants.GetVariant(ctx, kept.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.variants.RestoreVariant(ctx, kept.ID)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	restored, err := f.products.RestoreProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.False(t, restored.Archived)

	back, err := f.variants.GetVariant(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, back.QuantityInStock)

	_, err = f.variants.GetVariant(ctx, early.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound, "separately archived variants stay archived")

	again, err := f.variants.RestoreVariant(ctx, early.ID)
	require.NoError(t, err)
	assert.False(t, again.Archived)

	count, err := f.movements.CountByVariant(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestVariantService_UpdateVariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product, err := f.products.CreateProduct(ctx, appcatalog.CreateProductRequest{Name: "Gold Ring"})
	require.NoError(t, err)
	v := f.variant(t, product.ID, "7", "gold", 4)

	weight := "3g"
	got, err := f.variants.UpdateVariant(ctx, v.ID, appcatalog.UpdateVariantRequest{Weight: &weight})
	require.NoError(t, err)
	assert.Equal(t, v.SKU, got.SKU, "weight is not part of the SKU identity")
	assert.Equal(t, "3g", got.Weight)

	size := "8"
	cost := decimal.RequireFromString("12.50")
	got, err = f.variants.UpdateVariant(ctx, v.ID, appcatalog.UpdateVariantRequest{Size: &size, UnitCost: &cost})
	require.NoError(t, err)
	assert.Equal(t, "GR-8G-0001", got.SKU)
	assert.True(t, got.UnitCost.Decimal.Equal(cost))
	assert.Equal(t, 4, got.QuantityInStock)

	bySKU, err := f.variants.GetVariantBySKU(ctx, "GR-8G-0001")
	require.NoError(t, err)
	assert.Equal(t, v.ID, bySKU.ID)
}

func TestVariantService_UpdateVariant_MoveToProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ring, err := f.products.CreateProduct(ctx, appcatalog.CreateProductRequest{Name: "Gold Ring"})
	require.NoError(t, err)
	band, err := f.products.CreateProduct(ctx, appcatalog.CreateProductRequest{Name: "Silver Band"})
	require.NoError(t, err)
	v := f.variant(t, ring.ID, "7", "gold", 6)

	got, err := f.variants.UpdateVariant(ctx, v.ID, appcatalog.UpdateVariantRequest{ProductID: &ring.ID})
	require.NoError(t, err)
	assert.Equal(t, "GR-7G-0001", got.SKU, "same product is not a move")

	got, err = f.variants.UpdateVariant(ctx, v.ID, appcatalog.UpdateVariantRequest{ProductID: &band.ID})
	require.NoError(t, err)
	assert.Equal(t, band.ID, got.ProductID)
	assert.Equal(t, "SB-7G-0001", got.SKU)
	assert.Equal(t, 6, got.QuantityInStock)

	_, err = f.variants.GetVariantBySKU(ctx, "GR-7G-0001")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	missing := uuid.New()
	_, err = f.variants.UpdateVariant(ctx, v.ID, appcatalog.UpdateVariantRequest{ProductID: &missing})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	empty := uuid.Nil
	_, err = f.variants.UpdateVariant(ctx, v.ID, appcatalog.UpdateVariantRequest{ProductID: &empty})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	count, err := f.movements.CountByVariant(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "moving a variant writes no movement")
}

func TestVariantService_SetReorderLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product, err := f.products.CreateProduct(ctx, appcatalog.CreateProductRequest{Name: "Gold Ring"})
	require.NoError(t, err)
	v := f.variant(t, product.ID, "7", "", 12)
	assert.Equal(t, catalog.StockStatusInStock, v.Status)

	got, err := f.variants.SetReorderLevel(ctx, v.ID, 15)
	require.NoError(t, err)
	assert.Equal(t, catalog.StockStatusLowStock, got.Status)
	assert.Equal(t, 12, got.QuantityInStock)

	_, err = f.variants.SetReorderLevel(ctx, v.ID, -1)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	count, err := f.movements.CountByVariant(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestVariantService_ListVariants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product, err := f.products.CreateProduct(ctx, appcatalog.CreateProductRequest{Name: "Gold Ring"})
	require.NoError(t, err)
	f.variant(t, product.ID, "6", "", 0)
	f.variant(t, product.ID, "7", "", 4)
	f.variant(t, product.ID, "8", "", 40)

	page, err := f.variants.ListVariants(ctx, appcatalog.VariantListFilter{StockStatus: "low_stock"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "GR-7-0001", page.Items[0].SKU)

	page, err = f.variants.ListVariants(ctx, appcatalog.VariantListFilter{ProductID: &product.ID, OrderBy: "quantity_in_stock", OrderDir: "desc"})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, 40, page.Items[0].QuantityInStock)

	_, err = f.variants.ListVariants(ctx, appcatalog.VariantListFilter{StockStatus: "plenty"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
