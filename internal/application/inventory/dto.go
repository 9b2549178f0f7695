package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/application/validation"
	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdjustMode selects how AdjustStock interprets Amount
type AdjustMode string

const (
	AdjustModeAdd      AdjustMode = "add"
	AdjustModeSubtract AdjustMode = "subtract"
	AdjustModeSet      AdjustMode = "set"
)

// defaultMovementType is recorded when a request leaves MovementType empty
func (m AdjustMode) defaultMovementType() inventory.MovementType {
	switch m {
	case AdjustModeAdd:
		return inventory.MovementTypeRestock
	case AdjustModeSubtract:
		return inventory.MovementTypeSale
	}
	return inventory.MovementTypeAdjustment
}

// AdjustStockRequest is the input of a single ledger write.
// Amount must be non-negative for add and subtract; a negative set target
// clamps to zero.
type AdjustStockRequest struct {
	VariantID     uuid.UUID              `json:"variant_id" validate:"required"`
	Mode          AdjustMode             `json:"mode" validate:"required,oneof=add subtract set"`
	Amount        int                    `json:"amount"`
	MovementType  inventory.MovementType `json:"movement_type" validate:"omitempty,oneof=restock sale adjustment damage loss return transfer initial_stock manual_edit"`
	Reason        string                 `json:"reason" validate:"max=500"`
	Notes         string                 `json:"notes" validate:"max=2000"`
	ReferenceType string                 `json:"reference_type" validate:"max=50"`
	ReferenceID   string                 `json:"reference_id" validate:"max=100"`
	Platform      *inventory.Platform    `json:"platform" validate:"omitempty,oneof=tiktok shopee bazaar others"`
	UnitCost      decimal.NullDecimal    `json:"unit_cost"`

	Attribution inventory.Attribution `json:"-"`

	// IdempotencyKey makes a retried request a no-op within the configured TTL
	IdempotencyKey string `json:"idempotency_key" validate:"max=128"`
}

func (r AdjustStockRequest) validate() error {
	if err := validation.Struct(r, shared.CodeInvalidInput); err != nil {
		return err
	}
	if r.Amount < 0 && r.Mode != AdjustModeSet {
		return shared.NewDomainError(shared.CodeInvalidInput, "amount: Must be at least 0")
	}
	return nil
}

func (r AdjustStockRequest) movementType() inventory.MovementType {
	if r.MovementType != "" {
		return r.MovementType
	}
	return r.Mode.defaultMovementType()
}

func (r AdjustStockRequest) reference() inventory.Reference {
	if r.ReferenceType == "" && r.ReferenceID == "" {
		return inventory.Reference{Type: inventory.ReferenceTypeManual}
	}
	return inventory.Reference{Type: r.ReferenceType, ID: r.ReferenceID}
}

// AdjustStockResult reports the outcome of a ledger write.
// Changed is false when the request resolved to a zero delta; no movement was written then.
type AdjustStockResult struct {
	VariantID      uuid.UUID           `json:"variant_id"`
	SKU            string              `json:"sku"`
	Changed        bool                `json:"changed"`
	QuantityBefore int                 `json:"quantity_before"`
	QuantityAfter  int                 `json:"quantity_after"`
	Status         catalog.StockStatus `json:"status"`
	PreviousStatus catalog.StockStatus `json:"previous_status"`
	Movement       *MovementResponse   `json:"movement,omitempty"`

	event shared.DomainEvent
}

// CreateVariantRequest creates a variant and optionally books its opening stock
type CreateVariantRequest struct {
	ProductID       uuid.UUID           `json:"product_id" validate:"required"`
	Name            string              `json:"name" validate:"max=200"`
	SKU             string              `json:"sku" validate:"omitempty,max=64"`
	Size            string              `json:"size" validate:"max=50"`
	Color           string              `json:"color" validate:"max=50"`
	Material        string              `json:"material" validate:"max=50"`
	Weight          string              `json:"weight" validate:"max=50"`
	VariantInitial  string              `json:"variant_initial" validate:"max=10"`
	InitialQuantity int                 `json:"initial_quantity" validate:"min=0"`
	ReorderLevel    *int                `json:"reorder_level" validate:"omitempty,min=0"`
	UnitCost        decimal.NullDecimal `json:"unit_cost"`
	Notes           string              `json:"notes" validate:"max=2000"`
	Reason          string              `json:"reason" validate:"max=500"`
	ReferenceType   string              `json:"reference_type" validate:"max=50"`
	ReferenceID     string              `json:"reference_id" validate:"max=100"`

	Attribution inventory.Attribution `json:"-"`
}

// Attributes returns the SKU-relevant attributes of the request
func (r CreateVariantRequest) Attributes() catalog.VariantAttributes {
	return catalog.VariantAttributes{
		Size:           r.Size,
		Color:          r.Color,
		Material:       r.Material,
		Weight:         r.Weight,
		VariantInitial: r.VariantInitial,
	}
}

// CreateVariantResult is the created variant plus its opening movement, if any
type CreateVariantResult struct {
	Variant  VariantResponse   `json:"variant"`
	Movement *MovementResponse `json:"movement,omitempty"`

	event shared.DomainEvent
}

// VariantResponse represents a variant in service responses
type VariantResponse struct {
	ID              uuid.UUID           `json:"id"`
	ProductID       uuid.UUID           `json:"product_id"`
	SKU             string              `json:"sku"`
	Name            string              `json:"name"`
	Size            string              `json:"size,omitempty"`
	Color           string              `json:"color,omitempty"`
	Material        string              `json:"material,omitempty"`
	Weight          string              `json:"weight,omitempty"`
	VariantInitial  string              `json:"variant_initial,omitempty"`
	QuantityInStock int                 `json:"quantity_in_stock"`
	ReorderLevel    int                 `json:"reorder_level"`
	Status          catalog.StockStatus `json:"status"`
	IsActive        bool                `json:"is_active"`
	LastRestockedAt *time.Time          `json:"last_restocked_at,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	UnitCost        decimal.NullDecimal `json:"unit_cost"`
	Archived        bool                `json:"archived"`
	Version         int                 `json:"version"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// ToVariantResponse converts a domain variant to a response
func ToVariantResponse(v *catalog.ProductVariant) VariantResponse {
	return VariantResponse{
		ID:              v.ID,
		ProductID:       v.ProductID,
		SKU:             v.SKU,
		Name:            v.Name,
		Size:            v.Attributes.Size,
		Color:           v.Attributes.Color,
		Material:        v.Attributes.Material,
		Weight:          v.Attributes.Weight,
		VariantInitial:  v.Attributes.VariantInitial,
		QuantityInStock: v.QuantityInStock,
		ReorderLevel:    v.ReorderLevel,
		Status:          v.Status,
		IsActive:        v.IsActive,
		LastRestockedAt: v.LastRestockedAt,
		Notes:           v.Notes,
		UnitCost:        v.UnitCost,
		Archived:        v.IsArchived(),
		Version:         v.Version,
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
	}
}

// ToVariantResponses converts a slice of variants
func ToVariantResponses(variants []catalog.ProductVariant) []VariantResponse {
	out := make([]VariantResponse, len(variants))
	for i := range variants {
		out[i] = ToVariantResponse(&variants[i])
	}
	return out
}

// MovementResponse represents a stock movement in service responses
type MovementResponse struct {
	ID             uuid.UUID              `json:"id"`
	VariantID      uuid.UUID              `json:"variant_id"`
	Actor          string                 `json:"actor"`
	Type           inventory.MovementType `json:"movement_type"`
	QuantityBefore int                    `json:"quantity_before"`
	QuantityChange int                    `json:"quantity_change"`
	QuantityAfter  int                    `json:"quantity_after"`
	ReferenceType  string                 `json:"reference_type,omitempty"`
	ReferenceID    string                 `json:"reference_id,omitempty"`
	Platform       *inventory.Platform    `json:"platform,omitempty"`
	Reason         string                 `json:"reason,omitempty"`
	Notes          string                 `json:"notes,omitempty"`
	UnitCost       decimal.NullDecimal    `json:"unit_cost"`
	TotalCost      decimal.NullDecimal    `json:"total_cost"`
	IPAddress      string                 `json:"ip_address,omitempty"`
	UserAgent      string                 `json:"user_agent,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// ToMovementResponse converts a domain movement to a response
func ToMovementResponse(m *inventory.StockMovement) MovementResponse {
	return MovementResponse{
		ID:             m.ID,
		VariantID:      m.VariantID,
		Actor:          m.Actor,
		Type:           m.Type,
		QuantityBefore: m.QuantityBefore,
		QuantityChange: m.QuantityChange,
		QuantityAfter:  m.QuantityAfter,
		ReferenceType:  m.ReferenceType,
		ReferenceID:    m.ReferenceID,
		Platform:       m.Platform,
		Reason:         m.Reason,
		Notes:          m.Notes,
		UnitCost:       m.UnitCost,
		TotalCost:      m.TotalCost,
		IPAddress:      m.IPAddress,
		UserAgent:      m.UserAgent,
		CreatedAt:      m.CreatedAt,
	}
}

// ToMovementResponses converts a slice of movements
func ToMovementResponses(movements []inventory.StockMovement) []MovementResponse {
	out := make([]MovementResponse, len(movements))
	for i := range movements {
		out[i] = ToMovementResponse(&movements[i])
	}
	return out
}

// MovementListFilter is the query input for the movement audit trail
type MovementListFilter struct {
	VariantID     *uuid.UUID `json:"variant_id"`
	Types         []string   `json:"types" validate:"dive,oneof=restock sale adjustment damage loss return transfer initial_stock manual_edit"`
	Actor         string     `json:"actor"`
	Platform      string     `json:"platform" validate:"omitempty,oneof=tiktok shopee bazaar others"`
	ReferenceType string     `json:"reference_type"`
	ReferenceID   string     `json:"reference_id"`
	From          *time.Time `json:"from"`
	To            *time.Time `json:"to"`
	Page          int        `json:"page" validate:"min=0"`
	PageSize      int        `json:"page_size" validate:"min=0,max=500"`
	OrderBy       string     `json:"order_by"`
	OrderDir      string     `json:"order_dir" validate:"omitempty,oneof=asc desc ASC DESC"`
}

// StockInItemRequest is one received line
type StockInItemRequest struct {
	VariantID uuid.UUID           `json:"variant_id" validate:"required"`
	Quantity  int                 `json:"quantity" validate:"gt=0"`
	UnitCost  decimal.NullDecimal `json:"unit_cost"`
}

// CreateStockInRequest posts a receiving document
type CreateStockInRequest struct {
	Reason     string               `json:"reason" validate:"max=500"`
	Notes      string               `json:"notes" validate:"max=2000"`
	ReceivedAt time.Time            `json:"received_at"`
	Items      []StockInItemRequest `json:"items" validate:"required,min=1,dive"`

	Attribution inventory.Attribution `json:"-"`
}

// StockOutItemRequest is one dispatched line split across platforms
type StockOutItemRequest struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	TikTok    int       `json:"tiktok" validate:"min=0"`
	Shopee    int       `json:"shopee" validate:"min=0"`
	Bazaar    int       `json:"bazaar" validate:"min=0"`
	Others    int       `json:"others" validate:"min=0"`
}

// Breakdown returns the platform split of the line
func (r StockOutItemRequest) Breakdown() inventory.PlatformBreakdown {
	return inventory.PlatformBreakdown{TikTok: r.TikTok, Shopee: r.Shopee, Bazaar: r.Bazaar, Others: r.Others}
}

// CreateStockOutRequest posts a dispatch document
type CreateStockOutRequest struct {
	Reason string                `json:"reason" validate:"max=500"`
	Notes  string                `json:"notes" validate:"max=2000"`
	Items  []StockOutItemRequest `json:"items" validate:"required,min=1,dive"`

	Attribution inventory.Attribution `json:"-"`
}

// StockInResponse represents a posted stock-in
type StockInResponse struct {
	ID            uuid.UUID             `json:"id"`
	Number        string                `json:"number"`
	Reason        string                `json:"reason,omitempty"`
	Actor         string                `json:"actor"`
	ReceivedAt    time.Time             `json:"received_at"`
	TotalQuantity int                   `json:"total_quantity"`
	Items         []StockInItemResponse `json:"items"`
	CreatedAt     time.Time             `json:"created_at"`
}

// StockInItemResponse represents one received line
type StockInItemResponse struct {
	VariantID  uuid.UUID           `json:"variant_id"`
	Quantity   int                 `json:"quantity"`
	UnitCost   decimal.NullDecimal `json:"unit_cost"`
	MovementID *uuid.UUID          `json:"movement_id,omitempty"`
}

// ToStockInResponse converts a stock-in document
func ToStockInResponse(doc *inventory.StockIn) StockInResponse {
	items := make([]StockInItemResponse, len(doc.Items))
	for i, item := range doc.Items {
		items[i] = StockInItemResponse{
			VariantID:  item.VariantID,
			Quantity:   item.Quantity,
			UnitCost:   item.UnitCost,
			MovementID: item.MovementID,
		}
	}
	return StockInResponse{
		ID:            doc.ID,
		Number:        doc.Number,
		Reason:        doc.Reason,
		Actor:         doc.Actor,
		ReceivedAt:    doc.ReceivedAt,
		TotalQuantity: doc.TotalQuantity,
		Items:         items,
		CreatedAt:     doc.CreatedAt,
	}
}

// StockOutResponse represents a posted stock-out
type StockOutResponse struct {
	ID             uuid.UUID              `json:"id"`
	Number         string                 `json:"number"`
	Reason         string                 `json:"reason,omitempty"`
	Actor          string                 `json:"actor"`
	TotalQuantity  int                    `json:"total_quantity"`
	FulfilledTotal int                    `json:"fulfilled_total"`
	Items          []StockOutItemResponse `json:"items"`
	CreatedAt      time.Time              `json:"created_at"`
}

// StockOutItemResponse represents one dispatched line
type StockOutItemResponse struct {
	VariantID         uuid.UUID  `json:"variant_id"`
	TikTok            int        `json:"tiktok"`
	Shopee            int        `json:"shopee"`
	Bazaar            int        `json:"bazaar"`
	Others            int        `json:"others"`
	RequestedQuantity int        `json:"requested_quantity"`
	FulfilledQuantity int        `json:"fulfilled_quantity"`
	MovementID        *uuid.UUID `json:"movement_id,omitempty"`
}

// ToStockOutResponse converts a stock-out document
func ToStockOutResponse(doc *inventory.StockOut) StockOutResponse {
	items := make([]StockOutItemResponse, len(doc.Items))
	for i, item := range doc.Items {
		items[i] = StockOutItemResponse{
			VariantID:         item.VariantID,
			TikTok:            item.Breakdown.TikTok,
			Shopee:            item.Breakdown.Shopee,
			Bazaar:            item.Breakdown.Bazaar,
			Others:            item.Breakdown.Others,
			RequestedQuantity: item.RequestedQuantity,
			FulfilledQuantity: item.FulfilledQuantity,
			MovementID:        item.MovementID,
		}
	}
	return StockOutResponse{
		ID:             doc.ID,
		Number:         doc.Number,
		Reason:         doc.Reason,
		Actor:          doc.Actor,
		TotalQuantity:  doc.TotalQuantity,
		FulfilledTotal: doc.FulfilledTotal(),
		Items:          items,
		CreatedAt:      doc.CreatedAt,
	}
}

// StockSummary is the dashboard read model: status counts plus the three aggregates
type StockSummary struct {
	StatusCounts map[catalog.StockStatus]int64 `json:"status_counts"`
	ByCategory   []inventory.CategoryQuantity  `json:"by_category"`
	ByPlatform   []inventory.PlatformTotal     `json:"by_platform"`
	ByDay        []inventory.DailyMovement     `json:"by_day"`
}
