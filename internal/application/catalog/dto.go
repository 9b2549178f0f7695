package catalog

import (
	"time"

	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateProductRequest creates a product filed under a category pair.
// Blank category names map to the defaults.
type CreateProductRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category" validate:"max=100"`
	SubCategory string `json:"sub_category" validate:"max=100"`
}

// ProductAction is a lifecycle transition
type ProductAction string

const (
	ProductActionActivate    ProductAction = "activate"
	ProductActionDeactivate  ProductAction = "deactivate"
	ProductActionDiscontinue ProductAction = "discontinue"
)

// ProductResponse represents a product in service responses
type ProductResponse struct {
	ID            uuid.UUID             `json:"id"`
	Name          string                `json:"name"`
	Description   string                `json:"description,omitempty"`
	CategoryID    *uuid.UUID            `json:"category_id,omitempty"`
	SubCategoryID *uuid.UUID            `json:"sub_category_id,omitempty"`
	BasePrefix    string                `json:"base_prefix"`
	Status        catalog.ProductStatus `json:"status"`
	Archived      bool                  `json:"archived"`
	Version       int                   `json:"version"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// ToProductResponse converts a domain Product
func ToProductResponse(p *catalog.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		CategoryID:    p.CategoryID,
		SubCategoryID: p.SubCategoryID,
		BasePrefix:    p.BasePrefix,
		Status:        p.Status,
		Archived:      p.IsArchived(),
		Version:       p.Version,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// ProductListFilter narrows ListProducts
type ProductListFilter struct {
	Search          string     `json:"search" validate:"max=200"`
	CategoryID      *uuid.UUID `json:"category_id"`
	Status          string     `json:"status" validate:"omitempty,oneof=active inactive discontinued"`
	IncludeArchived bool       `json:"include_archived"`
	Page            int        `json:"page" validate:"min=0"`
	PageSize        int        `json:"page_size" validate:"min=0,max=100"`
	OrderBy         string     `json:"order_by"`
	OrderDir        string     `json:"order_dir" validate:"omitempty,oneof=asc desc ASC DESC"`
}

// UpdateVariantRequest changes descriptive fields of a variant.
// Nil fields are left untouched. Changing size, color, material, the
// variant initial or the owning product regenerates the SKU.
type UpdateVariantRequest struct {
	ProductID      *uuid.UUID       `json:"product_id"`
	Name           *string          `json:"name" validate:"omitempty,max=200"`
	Size           *string          `json:"size" validate:"omitempty,max=50"`
	Color          *string          `json:"color" validate:"omitempty,max=50"`
	Material       *string          `json:"material" validate:"omitempty,max=50"`
	Weight         *string          `json:"weight" validate:"omitempty,max=50"`
	VariantInitial *string          `json:"variant_initial" validate:"omitempty,max=10"`
	Notes          *string          `json:"notes" validate:"omitempty,max=2000"`
	UnitCost       *decimal.Decimal `json:"unit_cost"`
	IsActive       *bool            `json:"is_active"`
}

func (r UpdateVariantRequest) apply(name string, attrs catalog.VariantAttributes) (string, catalog.VariantAttributes) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&name, r.Name)
	set(&attrs.Size, r.Size)
	set(&attrs.Color, r.Color)
	set(&attrs.Material, r.Material)
	set(&attrs.Weight, r.Weight)
	set(&attrs.VariantInitial, r.VariantInitial)
	return name, attrs
}

// VariantListFilter narrows ListVariants
type VariantListFilter struct {
	ProductID       *uuid.UUID `json:"product_id"`
	CategoryID      *uuid.UUID `json:"category_id"`
	SubCategoryID   *uuid.UUID `json:"sub_category_id"`
	StockStatus     string     `json:"stock_status" validate:"omitempty,oneof=in_stock low_stock out_of_stock"`
	Search          string     `json:"search" validate:"max=100"`
	IncludeArchived bool       `json:"include_archived"`
	Page            int        `json:"page" validate:"min=0"`
	PageSize        int        `json:"page_size" validate:"min=0,max=100"`
	OrderBy         string     `json:"order_by"`
	OrderDir        string     `json:"order_dir" validate:"omitempty,oneof=asc desc ASC DESC"`
}
