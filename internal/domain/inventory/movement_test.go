package inventory

import (
	"errors"
	"testing"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStockMovement(t *testing.T) {
	variantID := uuid.New()

	t.Run("computes change from before and after", func(t *testing.T) {
		m, err := NewStockMovement(MovementInput{
			VariantID:      variantID,
			Type:           MovementTypeSale,
			QuantityBefore: 12,
			QuantityAfter:  7,
			Reason:         " sale ",
		})
		require.NoError(t, err)
		assert.Equal(t, -5, m.QuantityChange)
		assert.True(t, m.IsBalanced())
		assert.Equal(t, "sale", m.Reason)
		assert.False(t, m.CreatedAt.IsZero())
	})

	t.Run("missing actor becomes system", func(t *testing.T) {
		m, err := NewStockMovement(MovementInput{VariantID: variantID, Type: MovementTypeRestock, QuantityAfter: 1})
		require.NoError(t, err)
		assert.Equal(t, SystemActor, m.Actor)
		assert.True(t, m.IsSystem())
	})

	t.Run("keeps actor and request metadata", func(t *testing.T) {
		m, err := NewStockMovement(MovementInput{
			VariantID:     variantID,
			Type:          MovementTypeAdjustment,
			QuantityAfter: 3,
			Attribution:   Attribution{Actor: "alice", IPAddress: "10.0.0.1", UserAgent: "cli"},
		})
		require.NoError(t, err)
		assert.Equal(t, "alice", m.Actor)
		assert.Equal(t, "10.0.0.1", m.IPAddress)
		assert.Equal(t, "cli", m.UserAgent)
	})

	t.Run("values total cost on absolute change", func(t *testing.T) {
		m, err := NewStockMovement(MovementInput{
			VariantID:      variantID,
			Type:           MovementTypeDamage,
			QuantityBefore: 10,
			QuantityAfter:  6,
			UnitCost:       decimal.NewNullDecimal(decimal.RequireFromString("2.50")),
		})
		require.NoError(t, err)
		require.True(t, m.TotalCost.Valid)
		assert.True(t, m.TotalCost.Decimal.Equal(decimal.RequireFromString("10")))
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := NewStockMovement(MovementInput{VariantID: variantID, Type: "teleport"})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))

		_, err = NewStockMovement(MovementInput{Type: MovementTypeSale})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))

		_, err = NewStockMovement(MovementInput{VariantID: variantID, Type: MovementTypeSale, QuantityAfter: -1})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))

		bad := Platform("ebay")
		_, err = NewStockMovement(MovementInput{VariantID: variantID, Type: MovementTypeSale, Platform: &bad})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})
}

func TestParseMovementTypeAndPlatform(t *testing.T) {
	mt, err := ParseMovementType(" Initial_Stock ")
	require.NoError(t, err)
	assert.Equal(t, MovementTypeInitialStock, mt)
	_, err = ParseMovementType("gift")
	assert.Error(t, err)

	p, err := ParsePlatform("TikTok")
	require.NoError(t, err)
	assert.Equal(t, PlatformTikTok, p)
	_, err = ParsePlatform("lazada")
	assert.Error(t, err)

	assert.Len(t, AllMovementTypes, 9)
}
