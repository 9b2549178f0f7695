package persistence

import (
	"strings"

	"github.com/erp/stockledger/internal/domain/shared"
	"gorm.io/gorm"
)

// maxPageSize caps listing queries
const maxPageSize = 500

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// ProductSortFields contains allowed sort fields for products
var ProductSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"name":       true,
	"status":     true,
}

// VariantSortFields contains allowed sort fields for product variants
var VariantSortFields = map[string]bool{
	"id":                true,
	"created_at":        true,
	"updated_at":        true,
	"sku":               true,
	"name":              true,
	"quantity_in_stock": true,
	"reorder_level":     true,
	"status":            true,
	"last_restocked_at": true,
}

// MovementSortFields contains allowed sort fields for stock movements
var MovementSortFields = map[string]bool{
	"created_at":      true,
	"movement_type":   true,
	"quantity_change": true,
	"actor":           true,
}

// applyPaging orders and paginates a listing query. The column is qualified
// with table when given so joined queries stay unambiguous.
func applyPaging(query *gorm.DB, filter shared.Filter, table string, allowed map[string]bool, defaultField string) *gorm.DB {
	filter = filter.Normalize(maxPageSize)
	field := ValidateSortField(filter.OrderBy, allowed, defaultField)
	if table != "" {
		field = table + "." + field
	}
	return query.
		Order(field + " " + ValidateSortOrder(filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize)
}
