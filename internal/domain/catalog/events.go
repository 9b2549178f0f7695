package catalog

import (
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constants
const (
	AggregateTypeProduct        = "Product"
	AggregateTypeProductVariant = "ProductVariant"
)

// Event type constants
const (
	EventTypeProductCreated       = "ProductCreated"
	EventTypeProductStatusChanged = "ProductStatusChanged"
	EventTypeProductArchived      = "ProductArchived"
	EventTypeStockLevelChanged    = "StockLevelChanged"
)

// ProductCreatedEvent is published when a new product is created
type ProductCreatedEvent struct {
	shared.BaseDomainEvent
	ProductID  uuid.UUID `json:"product_id"`
	Name       string    `json:"name"`
	BasePrefix string    `json:"base_prefix"`
}

// NewProductCreatedEvent creates a new ProductCreatedEvent
func NewProductCreatedEvent(product *Product) *ProductCreatedEvent {
	return &ProductCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductCreated, AggregateTypeProduct, product.ID),
		ProductID:       product.ID,
		Name:            product.Name,
		BasePrefix:      product.BasePrefix,
	}
}

// ProductStatusChangedEvent is published when a product's lifecycle status changes
type ProductStatusChangedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID     `json:"product_id"`
	OldStatus ProductStatus `json:"old_status"`
	NewStatus ProductStatus `json:"new_status"`
}

// NewProductStatusChangedEvent creates a new ProductStatusChangedEvent
func NewProductStatusChangedEvent(product *Product, oldStatus, newStatus ProductStatus) *ProductStatusChangedEvent {
	return &ProductStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductStatusChanged, AggregateTypeProduct, product.ID),
		ProductID:       product.ID,
		OldStatus:       oldStatus,
		NewStatus:       newStatus,
	}
}

// ProductArchivedEvent is published when a product is soft-deleted
type ProductArchivedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
}

// NewProductArchivedEvent creates a new ProductArchivedEvent
func NewProductArchivedEvent(product *Product) *ProductArchivedEvent {
	return &ProductArchivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductArchived, AggregateTypeProduct, product.ID),
		ProductID:       product.ID,
	}
}

// StockLevelChangedEvent is published after a ledger write commits
type StockLevelChangedEvent struct {
	shared.BaseDomainEvent
	VariantID      uuid.UUID   `json:"variant_id"`
	ProductID      uuid.UUID   `json:"product_id"`
	SKU            string      `json:"sku"`
	MovementID     uuid.UUID   `json:"movement_id"`
	MovementType   string      `json:"movement_type"`
	QuantityBefore int         `json:"quantity_before"`
	QuantityAfter  int         `json:"quantity_after"`
	ReorderLevel   int         `json:"reorder_level"`
	OldStatus      StockStatus `json:"old_status"`
	NewStatus      StockStatus `json:"new_status"`
}

// NewStockLevelChangedEvent creates a new StockLevelChangedEvent
func NewStockLevelChangedEvent(v *ProductVariant, movementID uuid.UUID, movementType string, before int, oldStatus StockStatus) *StockLevelChangedEvent {
	return &StockLevelChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockLevelChanged, AggregateTypeProductVariant, v.ID),
		VariantID:       v.ID,
		ProductID:       v.ProductID,
		SKU:             v.SKU,
		MovementID:      movementID,
		MovementType:    movementType,
		QuantityBefore:  before,
		QuantityAfter:   v.QuantityInStock,
		ReorderLevel:    v.ReorderLevel,
		OldStatus:       oldStatus,
		NewStatus:       v.Status,
	}
}

// StatusChanged reports whether the write crossed a status boundary
func (e *StockLevelChangedEvent) StatusChanged() bool {
	return e.OldStatus != e.NewStatus
}
