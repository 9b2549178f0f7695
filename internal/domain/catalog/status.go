package catalog

// StockStatus is the stock level classification of a variant.
// It is always derived from quantity and reorder level, never set directly.
type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

// String returns the string representation of StockStatus
func (s StockStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is one of the known values
func (s StockStatus) IsValid() bool {
	switch s {
	case StockStatusInStock, StockStatusLowStock, StockStatusOutOfStock:
		return true
	}
	return false
}

// NeedsAttention reports whether the status should raise a low-stock alert
func (s StockStatus) NeedsAttention() bool {
	return s == StockStatusLowStock || s == StockStatusOutOfStock
}

// ResolveStatus maps a quantity and reorder level to a stock status.
//
//	quantity <= 0                 -> out_of_stock
//	0 < quantity <= reorderLevel  -> low_stock
//	quantity > reorderLevel       -> in_stock
//
// A zero reorder level still yields out_of_stock at zero quantity.
func ResolveStatus(quantity, reorderLevel int) StockStatus {
	if quantity <= 0 {
		return StockStatusOutOfStock
	}
	if quantity <= reorderLevel {
		return StockStatusLowStock
	}
	return StockStatusInStock
}

// DisplayStatus combines the product lifecycle with the variant stock status
// for presentation. Discontinued products show as discontinued regardless of
// stock, but the stored stock status is left untouched.
func DisplayStatus(product ProductStatus, stock StockStatus) string {
	if product == ProductStatusDiscontinued {
		return string(ProductStatusDiscontinued)
	}
	return string(stock)
}
