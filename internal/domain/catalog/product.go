package catalog

import (
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// ProductStatus represents the lifecycle status of a product.
// It is independent from the stock status of its variants.
type ProductStatus string

const (
	ProductStatusActive       ProductStatus = "active"
	ProductStatusInactive     ProductStatus = "inactive"
	ProductStatusDiscontinued ProductStatus = "discontinued"
)

// IsValid returns true if the status is one of the known values
func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductStatusActive, ProductStatusInactive, ProductStatusDiscontinued:
		return true
	}
	return false
}

// Product groups the variants sold under one name.
// It is the aggregate root for catalog-level attributes.
type Product struct {
	shared.BaseAggregateRoot
	shared.Archivable
	Name          string
	Description   string
	CategoryID    *uuid.UUID
	SubCategoryID *uuid.UUID
	BasePrefix    string
	Status        ProductStatus
}

// NewProduct creates a new active product
func NewProduct(name string) (*Product, error) {
	name = strings.TrimSpace(name)
	if err := validateProductName(name); err != nil {
		return nil, err
	}

	product := &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		BasePrefix:        BasePrefix(name),
		Status:            ProductStatusActive,
	}

	product.AddDomainEvent(NewProductCreatedEvent(product))

	return product, nil
}

// Rename changes the product name. The base prefix is kept so existing
// SKUs, and the sheets keyed on them, stay valid.
func (p *Product) Rename(name string) error {
	name = strings.TrimSpace(name)
	if err := validateProductName(name); err != nil {
		return err
	}
	if p.BasePrefix == "" {
		p.BasePrefix = BasePrefix(p.Name)
	}
	p.Name = name
	p.touch()
	return nil
}

// SKUPrefix is the base prefix new and regenerated variant SKUs start with
func (p *Product) SKUPrefix() string {
	if p.BasePrefix != "" {
		return p.BasePrefix
	}
	return BasePrefix(p.Name)
}

// SetCategory assigns the category and sub-category
func (p *Product) SetCategory(categoryID, subCategoryID *uuid.UUID) {
	p.CategoryID = categoryID
	p.SubCategoryID = subCategoryID
	p.touch()
}

// InCategory reports whether the product is filed under the given pair
func (p *Product) InCategory(categoryID, subCategoryID uuid.UUID) bool {
	return p.CategoryID != nil && *p.CategoryID == categoryID &&
		p.SubCategoryID != nil && *p.SubCategoryID == subCategoryID
}

// Activate activates the product
func (p *Product) Activate() error {
	if p.Status == ProductStatusActive {
		return shared.NewDomainError(shared.CodeInvalidState, "Product is already active")
	}
	if p.Status == ProductStatusDiscontinued {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot activate a discontinued product")
	}
	p.changeStatus(ProductStatusActive)
	return nil
}

// Deactivate deactivates the product
func (p *Product) Deactivate() error {
	if p.Status == ProductStatusInactive {
		return shared.NewDomainError(shared.CodeInvalidState, "Product is already inactive")
	}
	if p.Status == ProductStatusDiscontinued {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot deactivate a discontinued product")
	}
	p.changeStatus(ProductStatusInactive)
	return nil
}

// Discontinue marks the product as discontinued
// A discontinued product cannot be reactivated
func (p *Product) Discontinue() error {
	if p.Status == ProductStatusDiscontinued {
		return shared.NewDomainError(shared.CodeInvalidState, "Product is already discontinued")
	}
	p.changeStatus(ProductStatusDiscontinued)
	return nil
}

// IsDiscontinued returns true if the product is discontinued
func (p *Product) IsDiscontinued() bool {
	return p.Status == ProductStatusDiscontinued
}

// ArchiveAt soft-deletes the product
func (p *Product) ArchiveAt(at time.Time) error {
	if err := p.Archive(at); err != nil {
		return err
	}
	p.touch()
	p.AddDomainEvent(NewProductArchivedEvent(p))
	return nil
}

// Unarchive restores a soft-deleted product
func (p *Product) Unarchive() error {
	if err := p.Restore(); err != nil {
		return err
	}
	p.touch()
	return nil
}

func (p *Product) changeStatus(status ProductStatus) {
	old := p.Status
	p.Status = status
	p.touch()
	p.AddDomainEvent(NewProductStatusChangedEvent(p, old, status))
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now()
	p.BumpVersion()
}

func validateProductName(name string) error {
	if name == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Product name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Product name cannot exceed 200 characters")
	}
	return nil
}
