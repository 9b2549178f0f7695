package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		name         string
		quantity     int
		reorderLevel int
		want         StockStatus
	}{
		{"zero quantity", 0, 5, StockStatusOutOfStock},
		{"at reorder level", 5, 5, StockStatusLowStock},
		{"above reorder level", 6, 5, StockStatusInStock},
		{"zero quantity zero reorder", 0, 0, StockStatusOutOfStock},
		{"one unit zero reorder", 1, 0, StockStatusInStock},
		{"negative quantity", -3, 10, StockStatusOutOfStock},
		{"one unit below reorder", 1, 10, StockStatusLowStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveStatus(tt.quantity, tt.reorderLevel))
		})
	}
}

func TestResolveStatus_Partition(t *testing.T) {
	for reorder := 0; reorder <= 20; reorder++ {
		for qty := -2; qty <= 30; qty++ {
			got := ResolveStatus(qty, reorder)
			assert.True(t, got.IsValid())
			switch {
			case qty <= 0:
				assert.Equal(t, StockStatusOutOfStock, got, "qty=%d reorder=%d", qty, reorder)
			case qty <= reorder:
				assert.Equal(t, StockStatusLowStock, got, "qty=%d reorder=%d", qty, reorder)
			default:
				assert.Equal(t, StockStatusInStock, got, "qty=%d reorder=%d", qty, reorder)
			}
		}
	}
}

func TestDisplayStatus(t *testing.T) {
	assert.Equal(t, "discontinued", DisplayStatus(ProductStatusDiscontinued, StockStatusInStock))
	assert.Equal(t, "low_stock", DisplayStatus(ProductStatusActive, StockStatusLowStock))
	assert.Equal(t, "out_of_stock", DisplayStatus(ProductStatusInactive, StockStatusOutOfStock))
}

func TestStockStatus_NeedsAttention(t *testing.T) {
	assert.True(t, StockStatusLowStock.NeedsAttention())
	assert.True(t, StockStatusOutOfStock.NeedsAttention())
	assert.False(t, StockStatusInStock.NeedsAttention())
}
