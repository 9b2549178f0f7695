package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, db *Database, name string) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(name)
	require.NoError(t, err)
	require.NoError(t, NewGormProductRepository(db.DB).Create(context.Background(), p))
	return p
}

func seedVariant(t *testing.T, db *Database, productID uuid.UUID, sku string, qty, reorder int) *catalog.ProductVariant {
	t.Helper()
	v, err := catalog.NewProductVariant(productID, "", catalog.VariantAttributes{}, reorder)
	require.NoError(t, err)
	require.NoError(t, v.AssignSKU(sku))
	if qty > 0 {
		v.ApplyQuantity(qty, time.Now())
	}
	require.NoError(t, NewGormVariantRepository(db.DB).Create(context.Background(), v))
	return v
}

func seedMovement(t *testing.T, db *Database, variantID uuid.UUID, typ inventory.MovementType, before, after int, at time.Time) *inventory.StockMovement {
	t.Helper()
	m, err := inventory.NewStockMovement(inventory.MovementInput{
		VariantID:      variantID,
		Type:           typ,
		QuantityBefore: before,
		QuantityAfter:  after,
		At:             at,
	})
	require.NoError(t, err)
	require.NoError(t, NewGormMovementRepository(db.DB).Append(context.Background(), m))
	return m
}
