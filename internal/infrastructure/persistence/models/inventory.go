package models

import (
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockMovementModel is the persistence model for StockMovement.
// Rows are inserted once and never updated; they go away only with their variant.
type StockMovementModel struct {
	ID             uuid.UUID              `gorm:"type:uuid;primary_key"`
	VariantID      uuid.UUID              `gorm:"type:uuid;not null;index:idx_stock_movements_variant_created,priority:1"`
	Actor          string                 `gorm:"type:varchar(100);not null;default:'system';index"`
	MovementType   inventory.MovementType `gorm:"type:varchar(20);not null;index"`
	QuantityBefore int                    `gorm:"not null"`
	QuantityChange int                    `gorm:"not null"`
	QuantityAfter  int                    `gorm:"not null"`
	ReferenceType  string                 `gorm:"type:varchar(50);index:idx_stock_movements_reference,priority:1"`
	ReferenceID    string                 `gorm:"type:varchar(100);index:idx_stock_movements_reference,priority:2"`
	Platform       *string                `gorm:"type:varchar(20);index"`
	Reason         string                 `gorm:"type:varchar(255)"`
	Notes          string                 `gorm:"type:text"`
	UnitCost       decimal.NullDecimal    `gorm:"type:decimal(18,4)"`
	TotalCost      decimal.NullDecimal    `gorm:"type:decimal(18,4)"`
	IPAddress      string                 `gorm:"column:ip_address;type:varchar(45)"`
	UserAgent      string                 `gorm:"type:varchar(500)"`
	CreatedAt      time.Time              `gorm:"not null;index:idx_stock_movements_variant_created,priority:2"`

	Variant *ProductVariantModel `gorm:"foreignKey:VariantID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain StockMovement.
func (m *StockMovementModel) ToDomain() *inventory.StockMovement {
	return &inventory.StockMovement{
		ID:             m.ID,
		VariantID:      m.VariantID,
		Actor:          m.Actor,
		Type:           m.MovementType,
		QuantityBefore: m.QuantityBefore,
		QuantityChange: m.QuantityChange,
		QuantityAfter:  m.QuantityAfter,
		ReferenceType:  m.ReferenceType,
		ReferenceID:    m.ReferenceID,
		Platform:       platformFromColumn(m.Platform),
		Reason:         m.Reason,
		Notes:          m.Notes,
		UnitCost:       m.UnitCost,
		TotalCost:      m.TotalCost,
		IPAddress:      m.IPAddress,
		UserAgent:      m.UserAgent,
		CreatedAt:      m.CreatedAt,
	}
}

// StockMovementModelFromDomain creates a new persistence model from a domain StockMovement.
func StockMovementModelFromDomain(s *inventory.StockMovement) *StockMovementModel {
	return &StockMovementModel{
		ID:             s.ID,
		VariantID:      s.VariantID,
		Actor:          s.Actor,
		MovementType:   s.Type,
		QuantityBefore: s.QuantityBefore,
		QuantityChange: s.QuantityChange,
		QuantityAfter:  s.QuantityAfter,
		ReferenceType:  s.ReferenceType,
		ReferenceID:    s.ReferenceID,
		Platform:       platformToColumn(s.Platform),
		Reason:         s.Reason,
		Notes:          s.Notes,
		UnitCost:       s.UnitCost,
		TotalCost:      s.TotalCost,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		CreatedAt:      s.CreatedAt,
	}
}

func platformToColumn(p *inventory.Platform) *string {
	if p == nil {
		return nil
	}
	v := string(*p)
	return &v
}

func platformFromColumn(v *string) *inventory.Platform {
	if v == nil || *v == "" {
		return nil
	}
	p := inventory.Platform(*v)
	return &p
}

// StockInModel is the persistence model for a stock-in header.
type StockInModel struct {
	BaseModel
	Number        string             `gorm:"type:varchar(32);not null;uniqueIndex:idx_stock_ins_number"`
	Reason        string             `gorm:"type:varchar(255)"`
	Actor         string             `gorm:"type:varchar(100);not null"`
	Notes         string             `gorm:"type:text"`
	ReceivedAt    time.Time          `gorm:"not null"`
	TotalQuantity int                `gorm:"not null;default:0"`
	Items         []StockInItemModel `gorm:"foreignKey:StockInID;references:ID"`
}

// TableName returns the table name for GORM
func (StockInModel) TableName() string {
	return "stock_ins"
}

// StockInItemModel is the persistence model for one stock-in line.
type StockInItemModel struct {
	ID         uuid.UUID           `gorm:"type:uuid;primary_key"`
	StockInID  uuid.UUID           `gorm:"type:uuid;not null;index"`
	VariantID  uuid.UUID           `gorm:"type:uuid;not null;index"`
	Quantity   int                 `gorm:"not null"`
	UnitCost   decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	MovementID *uuid.UUID          `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (StockInItemModel) TableName() string {
	return "stock_in_items"
}

// ToDomain converts the persistence model to a domain StockIn with its items.
func (m *StockInModel) ToDomain() *inventory.StockIn {
	doc := &inventory.StockIn{
		BaseEntity:    m.BaseModel.ToDomain(),
		Number:        m.Number,
		Reason:        m.Reason,
		Actor:         m.Actor,
		Notes:         m.Notes,
		ReceivedAt:    m.ReceivedAt,
		TotalQuantity: m.TotalQuantity,
		Items:         make([]inventory.StockInItem, 0, len(m.Items)),
	}
	for _, item := range m.Items {
		doc.Items = append(doc.Items, inventory.StockInItem{
			ID:         item.ID,
			StockInID:  item.StockInID,
			VariantID:  item.VariantID,
			Quantity:   item.Quantity,
			UnitCost:   item.UnitCost,
			MovementID: item.MovementID,
		})
	}
	return doc
}

// StockInModelFromDomain creates a persistence model, items included.
func StockInModelFromDomain(doc *inventory.StockIn) *StockInModel {
	m := &StockInModel{
		Number:        doc.Number,
		Reason:        doc.Reason,
		Actor:         doc.Actor,
		Notes:         doc.Notes,
		ReceivedAt:    doc.ReceivedAt,
		TotalQuantity: doc.TotalQuantity,
		Items:         make([]StockInItemModel, 0, len(doc.Items)),
	}
	m.FromDomainBaseEntity(doc.BaseEntity)
	for _, item := range doc.Items {
		m.Items = append(m.Items, StockInItemModel{
			ID:         item.ID,
			StockInID:  doc.ID,
			VariantID:  item.VariantID,
			Quantity:   item.Quantity,
			UnitCost:   item.UnitCost,
			MovementID: item.MovementID,
		})
	}
	return m
}

// StockOutModel is the persistence model for a stock-out header.
type StockOutModel struct {
	BaseModel
	Number        string              `gorm:"type:varchar(32);not null;uniqueIndex:idx_stock_outs_number"`
	Reason        string              `gorm:"type:varchar(255)"`
	Actor         string              `gorm:"type:varchar(100);not null"`
	Notes         string              `gorm:"type:text"`
	TotalQuantity int                 `gorm:"not null;default:0"`
	Items         []StockOutItemModel `gorm:"foreignKey:StockOutID;references:ID"`
}

// TableName returns the table name for GORM
func (StockOutModel) TableName() string {
	return "stock_outs"
}

// StockOutItemModel is the persistence model for one stock-out line with its platform split.
type StockOutItemModel struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key"`
	StockOutID        uuid.UUID  `gorm:"type:uuid;not null;index"`
	VariantID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	TikTokQuantity    int        `gorm:"column:tiktok_quantity;not null;default:0"`
	ShopeeQuantity    int        `gorm:"not null;default:0"`
	BazaarQuantity    int        `gorm:"not null;default:0"`
	OthersQuantity    int        `gorm:"not null;default:0"`
	RequestedQuantity int        `gorm:"not null"`
	FulfilledQuantity int        `gorm:"not null"`
	MovementID        *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (StockOutItemModel) TableName() string {
	return "stock_out_items"
}

// ToDomain converts the persistence model to a domain StockOut with its items.
func (m *StockOutModel) ToDomain() *inventory.StockOut {
	doc := &inventory.StockOut{
		BaseEntity:    m.BaseModel.ToDomain(),
		Number:        m.Number,
		Reason:        m.Reason,
		Actor:         m.Actor,
		Notes:         m.Notes,
		TotalQuantity: m.TotalQuantity,
		Items:         make([]inventory.StockOutItem, 0, len(m.Items)),
	}
	for _, item := range m.Items {
		doc.Items = append(doc.Items, inventory.StockOutItem{
			ID:         item.ID,
			StockOutID: item.StockOutID,
			VariantID:  item.VariantID,
			Breakdown: inventory.PlatformBreakdown{
				TikTok: item.TikTokQuantity,
				Shopee: item.ShopeeQuantity,
				Bazaar: item.BazaarQuantity,
				Others: item.OthersQuantity,
			},
			RequestedQuantity: item.RequestedQuantity,
			FulfilledQuantity: item.FulfilledQuantity,
			MovementID:        item.MovementID,
		})
	}
	return doc
}

// StockOutModelFromDomain creates a persistence model, items included.
func StockOutModelFromDomain(doc *inventory.StockOut) *StockOutModel {
	m := &StockOutModel{
		Number:        doc.Number,
		Reason:        doc.Reason,
		Actor:         doc.Actor,
		Notes:         doc.Notes,
		TotalQuantity: doc.TotalQuantity,
		Items:         make([]StockOutItemModel, 0, len(doc.Items)),
	}
	m.FromDomainBaseEntity(doc.BaseEntity)
	for _, item := range doc.Items {
		m.Items = append(m.Items, StockOutItemModel{
			ID:                item.ID,
			StockOutID:        doc.ID,
			VariantID:         item.VariantID,
			TikTokQuantity:    item.Breakdown.TikTok,
			ShopeeQuantity:    item.Breakdown.Shopee,
			BazaarQuantity:    item.Breakdown.Bazaar,
			OthersQuantity:    item.Breakdown.Others,
			RequestedQuantity: item.RequestedQuantity,
			FulfilledQuantity: item.FulfilledQuantity,
			MovementID:        item.MovementID,
		})
	}
	return m
}
