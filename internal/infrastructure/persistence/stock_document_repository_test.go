package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSequence(t *testing.T) {
	n, ok := parseSequence("SI-20240301-0042", "SI-20240301-")
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = parseSequence("SO-20240301-0042", "SI-20240301-")
	assert.False(t, ok)

	_, ok = parseSequence("SI-20240301-abcd", "SI-20240301-")
	assert.False(t, ok)
}

func TestGormStockDocumentRepository(t *testing.T) {
	db := newSQLiteDatabase(t)
	repo := NewGormStockDocumentRepository(db.DB)
	ctx := context.Background()

	product := seedProduct(t, db, "Pearl Earring")
	variant := seedVariant(t, db, product.ID, "PE-0001", 20, 5)
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	inStem := inventory.DocumentNumberStem(inventory.StockInNumberPrefix, at)
	outStem := inventory.DocumentNumberStem(inventory.StockOutNumberPrefix, at)

	number, err := repo.NextDocumentNumber(ctx, inStem)
	require.NoError(t, err)
	assert.Equal(t, "SI-20240301-0001", number)

	t.Run("stock in round trip", func(t *testing.T) {
		doc, err := inventory.NewStockIn(number, "supplier delivery", inventory.Attribution{Actor: "alice"}, at)
		require.NoError(t, err)
		_, err = doc.AddItem(variant.ID, 8, decimal.NewNullDecimal(decimal.RequireFromString("2.50")))
		require.NoError(t, err)
		require.NoError(t, repo.CreateStockIn(ctx, doc))

		got, err := repo.FindStockInByID(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Actor)
		assert.Equal(t, 8, got.TotalQuantity)
		require.Len(t, got.Items, 1)
		assert.Equal(t, variant.ID, got.Items[0].VariantID)
		assert.True(t, got.Items[0].UnitCost.Decimal.Equal(decimal.RequireFromString("2.5")))

		next, err := repo.NextDocumentNumber(ctx, inStem)
		require.NoError(t, err)
		assert.Equal(t, "SI-20240301-0002", next)
	})

	t.Run("stock out sequence is independent", func(t *testing.T) {
		outNumber, err := repo.NextDocumentNumber(ctx, outStem)
		require.NoError(t, err)
		assert.Equal(t, "SO-20240301-0001", outNumber)

		doc, err := inventory.NewStockOut(outNumber, "weekend orders", inventory.Attribution{})
		require.NoError(t, err)
		breakdown, err := inventory.NewPlatformBreakdown([]inventory.PlatformQuantity{
			{Platform: inventory.PlatformTikTok, Quantity: 3},
			{Platform: inventory.PlatformShopee, Quantity: 2},
		})
		require.NoError(t, err)
		item, err := doc.AddItem(variant.ID, breakdown)
		require.NoError(t, err)
		item.FulfilledQuantity = 5
		require.NoError(t, repo.CreateStockOut(ctx, doc))

		got, err := repo.FindStockOutByID(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, inventory.SystemActor, got.Actor)
		require.Len(t, got.Items, 1)
		assert.Equal(t, 3, got.Items[0].Breakdown.TikTok)
		assert.Equal(t, 2, got.Items[0].Breakdown.Shopee)
		assert.Equal(t, 5, got.Items[0].RequestedQuantity)
		assert.Equal(t, 5, got.FulfilledTotal())

		next, err := repo.NextDocumentNumber(ctx, outStem)
		require.NoError(t, err)
		assert.Equal(t, "SO-20240301-0002", next)
	})
}
