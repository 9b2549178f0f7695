package catalog

import (
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultReorderLevel applies when a variant is created without one
const DefaultReorderLevel = 10

// ProductVariant is a sellable SKU of a product and the unit the stock ledger works on.
// QuantityInStock and Status only change through the ledger or SetReorderLevel.
type ProductVariant struct {
	shared.BaseAggregateRoot
	shared.Archivable
	ProductID       uuid.UUID
	SKU             string
	Name            string
	Attributes      VariantAttributes
	QuantityInStock int
	ReorderLevel    int
	Status          StockStatus
	IsActive        bool
	LastRestockedAt *time.Time
	Notes           string
	UnitCost        decimal.NullDecimal
}

// NewProductVariant creates an active variant with zero stock.
// A negative reorder level is rejected; pass DefaultReorderLevel when unknown.
func NewProductVariant(productID uuid.UUID, name string, attrs VariantAttributes, reorderLevel int) (*ProductVariant, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Variant requires a product")
	}
	if reorderLevel < 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Reorder level cannot be negative")
	}
	name = strings.TrimSpace(name)
	if len(name) > 200 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Variation name cannot exceed 200 characters")
	}

	v := &ProductVariant{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProductID:         productID,
		Name:              name,
		Attributes:        attrs.Normalize(),
		ReorderLevel:      reorderLevel,
		Status:            ResolveStatus(0, reorderLevel),
		IsActive:          true,
	}
	return v, nil
}

// AssignSKU sets the SKU after generation or from an import row
func (v *ProductVariant) AssignSKU(sku string) error {
	sku = strings.TrimSpace(sku)
	if err := ValidateSKU(sku); err != nil {
		return err
	}
	v.SKU = sku
	return nil
}

// ApplyQuantity moves the stock level to quantity (clamped at zero) and
// recomputes the derived status. Returns the quantity before the change.
// LastRestockedAt is stamped when stock goes from zero to positive.
func (v *ProductVariant) ApplyQuantity(quantity int, at time.Time) int {
	if quantity < 0 {
		quantity = 0
	}
	before := v.QuantityInStock
	v.QuantityInStock = quantity
	if before == 0 && quantity > 0 {
		stamp := at
		v.LastRestockedAt = &stamp
	}
	v.Status = ResolveStatus(v.QuantityInStock, v.ReorderLevel)
	v.UpdatedAt = at
	v.BumpVersion()
	return before
}

// SetReorderLevel changes the threshold and re-derives status.
// No movement is involved since quantity does not change.
func (v *ProductVariant) SetReorderLevel(level int) error {
	if level < 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Reorder level cannot be negative")
	}
	v.ReorderLevel = level
	v.RefreshStatus()
	v.touch()
	return nil
}

// RefreshStatus re-derives Status and reports whether it differed from the stored value
func (v *ProductVariant) RefreshStatus() bool {
	derived := ResolveStatus(v.QuantityInStock, v.ReorderLevel)
	if derived == v.Status {
		return false
	}
	v.Status = derived
	return true
}

// UpdateDetails replaces the variation name and attributes.
// Returns true when the SKU identity (size, color, material, initial) changed.
func (v *ProductVariant) UpdateDetails(name string, attrs VariantAttributes) bool {
	identityChanged := !v.Attributes.SameIdentity(attrs)
	v.Name = strings.TrimSpace(name)
	v.Attributes = attrs.Normalize()
	v.touch()
	return identityChanged
}

// MoveToProduct reassigns the owning product.
// Returns true when the product actually changed, which requires a new SKU.
func (v *ProductVariant) MoveToProduct(productID uuid.UUID) bool {
	if productID == v.ProductID {
		return false
	}
	v.ProductID = productID
	v.touch()
	return true
}

// SetNotes replaces the free-text notes
func (v *ProductVariant) SetNotes(notes string) {
	v.Notes = notes
	v.touch()
}

// SetUnitCost sets the default cost used for movement valuation
func (v *ProductVariant) SetUnitCost(cost decimal.Decimal) error {
	if cost.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Unit cost cannot be negative")
	}
	v.UnitCost = decimal.NewNullDecimal(cost)
	v.touch()
	return nil
}

// SetActive toggles whether the variant is offered for sale
func (v *ProductVariant) SetActive(active bool) {
	v.IsActive = active
	v.touch()
}

// ArchiveAt soft-deletes the variant. Its movements are kept.
func (v *ProductVariant) ArchiveAt(at time.Time) error {
	if err := v.Archive(at); err != nil {
		return err
	}
	v.touch()
	return nil
}

// Unarchive restores a soft-deleted variant
func (v *ProductVariant) Unarchive() error {
	if err := v.Restore(); err != nil {
		return err
	}
	v.touch()
	return nil
}

func (v *ProductVariant) touch() {
	v.UpdatedAt = time.Now()
	v.BumpVersion()
}
