package catalog

import (
	"context"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// ProductFilter narrows product listings
type ProductFilter struct {
	shared.Filter
	CategoryID      *uuid.UUID
	Status          *ProductStatus
	IncludeArchived bool
}

// VariantFilter narrows variant listings
type VariantFilter struct {
	shared.Filter
	ProductID       *uuid.UUID
	CategoryID      *uuid.UUID
	SubCategoryID   *uuid.UUID
	StockStatus     *StockStatus
	IncludeArchived bool
}

// ProductRepository defines the interface for product persistence.
// Finders skip archived products unless the method name says otherwise.
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByIDIncludingArchived is used by restore flows
	FindByIDIncludingArchived(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByName matches case-insensitively on the trimmed name
	FindByName(ctx context.Context, name string) (*Product, error)

	FindAll(ctx context.Context, filter ProductFilter) ([]Product, int64, error)

	Create(ctx context.Context, product *Product) error

	// SaveWithLock updates with an optimistic version check
	SaveWithLock(ctx context.Context, product *Product) error
}

// VariantRepository defines the interface for variant persistence.
// It also serves as the SKU lookup for the generator.
type VariantRepository interface {
	SKULookup

	FindByID(ctx context.Context, id uuid.UUID) (*ProductVariant, error)

	// FindByIDForUpdate reads the variant holding a row lock until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*ProductVariant, error)

	FindByIDIncludingArchived(ctx context.Context, id uuid.UUID) (*ProductVariant, error)

	FindBySKU(ctx context.Context, sku string) (*ProductVariant, error)

	// FindByProductAndName matches the variation name case-insensitively
	FindByProductAndName(ctx context.Context, productID uuid.UUID, name string) (*ProductVariant, error)

	// FindFirstByProduct returns the oldest live variant of the product
	FindFirstByProduct(ctx context.Context, productID uuid.UUID) (*ProductVariant, error)

	FindByProduct(ctx context.Context, productID uuid.UUID) ([]ProductVariant, error)

	FindAll(ctx context.Context, filter VariantFilter) ([]ProductVariant, int64, error)

	// Create inserts a variant; a taken SKU yields ErrAlreadyExists
	Create(ctx context.Context, variant *ProductVariant) error

	// SaveWithLock updates with an optimistic version check.
	// The variant's Version must already be incremented by the domain method.
	SaveWithLock(ctx context.Context, variant *ProductVariant) error

	CountByStockStatus(ctx context.Context) (map[StockStatus]int64, error)
}

// CategoryRepository defines the interface for category persistence
type CategoryRepository interface {
	FindCategoryByID(ctx context.Context, id uuid.UUID) (*Category, error)
	FindSubCategoryByID(ctx context.Context, id uuid.UUID) (*SubCategory, error)

	// FindOrCreateCategory matches case-insensitively; blank names map to the default
	FindOrCreateCategory(ctx context.Context, name string) (*Category, error)

	FindOrCreateSubCategory(ctx context.Context, categoryID uuid.UUID, name string) (*SubCategory, error)

	ListCategories(ctx context.Context) ([]Category, error)
}
