package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Document number prefixes
const (
	StockInNumberPrefix  = "SI"
	StockOutNumberPrefix = "SO"
)

// DocumentNumberStem returns "SI-20240301-" style stems for a given day
func DocumentNumberStem(prefix string, at time.Time) string {
	return fmt.Sprintf("%s-%s-", prefix, at.Format("20060102"))
}

// FormatDocumentNumber appends a zero-padded sequence to a stem
func FormatDocumentNumber(stem string, seq int) string {
	return fmt.Sprintf("%s%04d", stem, seq)
}

// StockIn is a receiving document. Each item produces one restock movement.
type StockIn struct {
	shared.BaseEntity
	Number        string
	Reason        string
	Actor         string
	Notes         string
	ReceivedAt    time.Time
	TotalQuantity int
	Items         []StockInItem
}

// StockInItem is one received line
type StockInItem struct {
	ID         uuid.UUID
	StockInID  uuid.UUID
	VariantID  uuid.UUID
	Quantity   int
	UnitCost   decimal.NullDecimal
	MovementID *uuid.UUID
}

// NewStockIn creates an empty stock-in header
func NewStockIn(number, reason string, attribution Attribution, receivedAt time.Time) (*StockIn, error) {
	if strings.TrimSpace(number) == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Stock-in number cannot be empty")
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return &StockIn{
		BaseEntity: shared.NewBaseEntity(),
		Number:     number,
		Reason:     strings.TrimSpace(reason),
		Actor:      attribution.ActorOrSystem(),
		ReceivedAt: receivedAt,
	}, nil
}

// AddItem appends a received line. Quantity must be positive.
func (s *StockIn) AddItem(variantID uuid.UUID, quantity int, unitCost decimal.NullDecimal) (*StockInItem, error) {
	if variantID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Stock-in item requires a variant")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Stock-in quantity must be positive")
	}
	if unitCost.Valid && unitCost.Decimal.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unit cost cannot be negative")
	}
	s.Items = append(s.Items, StockInItem{
		ID:        uuid.New(),
		StockInID: s.ID,
		VariantID: variantID,
		Quantity:  quantity,
		UnitCost:  unitCost,
	})
	s.TotalQuantity += quantity
	return &s.Items[len(s.Items)-1], nil
}

// Validate checks the document is ready to post
func (s *StockIn) Validate() error {
	if len(s.Items) == 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Stock-in must have at least one item")
	}
	return nil
}

// Reference returns the movement reference for this document
func (s *StockIn) Reference() Reference {
	return Reference{Type: ReferenceTypeStockIn, ID: s.Number}
}

// PlatformBreakdown splits a stock-out quantity across sales channels
type PlatformBreakdown struct {
	TikTok int
	Shopee int
	Bazaar int
	Others int
}

// PlatformQuantity is one entry of a breakdown in list form
type PlatformQuantity struct {
	Platform Platform
	Quantity int
}

// NewPlatformBreakdown folds a list of platform quantities. Repeated platforms are summed.
func NewPlatformBreakdown(entries []PlatformQuantity) (PlatformBreakdown, error) {
	var b PlatformBreakdown
	for _, e := range entries {
		if e.Quantity < 0 {
			return PlatformBreakdown{}, shared.NewDomainError(shared.CodeInvalidInput, "Platform quantity cannot be negative")
		}
		switch e.Platform {
		case PlatformTikTok:
			b.TikTok += e.Quantity
		case PlatformShopee:
			b.Shopee += e.Quantity
		case PlatformBazaar:
			b.Bazaar += e.Quantity
		case PlatformOthers:
			b.Others += e.Quantity
		default:
			return PlatformBreakdown{}, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown platform %q", e.Platform))
		}
	}
	return b, nil
}

// Quantity returns the quantity for one platform
func (b PlatformBreakdown) Quantity(p Platform) int {
	switch p {
	case PlatformTikTok:
		return b.TikTok
	case PlatformShopee:
		return b.Shopee
	case PlatformBazaar:
		return b.Bazaar
	case PlatformOthers:
		return b.Others
	}
	return 0
}

// Total sums all platforms
func (b PlatformBreakdown) Total() int {
	return b.TikTok + b.Shopee + b.Bazaar + b.Others
}

// Entries lists the non-zero platforms in column order
func (b PlatformBreakdown) Entries() []PlatformQuantity {
	var out []PlatformQuantity
	for _, p := range AllPlatforms {
		if q := b.Quantity(p); q > 0 {
			out = append(out, PlatformQuantity{Platform: p, Quantity: q})
		}
	}
	return out
}

// SinglePlatform returns the platform when exactly one has a quantity
func (b PlatformBreakdown) SinglePlatform() *Platform {
	entries := b.Entries()
	if len(entries) != 1 {
		return nil
	}
	p := entries[0].Platform
	return &p
}

// Validate rejects negative columns and empty breakdowns
func (b PlatformBreakdown) Validate() error {
	if b.TikTok < 0 || b.Shopee < 0 || b.Bazaar < 0 || b.Others < 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Platform quantity cannot be negative")
	}
	if b.Total() == 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Stock-out quantity must be positive")
	}
	return nil
}

// StockOut is a dispatch document. Each item produces one sale movement.
type StockOut struct {
	shared.BaseEntity
	Number        string
	Reason        string
	Actor         string
	Notes         string
	TotalQuantity int
	Items         []StockOutItem
}

// StockOutItem is one dispatched line with its channel split.
// RequestedQuantity is the breakdown total; FulfilledQuantity is what the ledger
// actually removed after clamping at zero.
type StockOutItem struct {
	ID                uuid.UUID
	StockOutID        uuid.UUID
	VariantID         uuid.UUID
	Breakdown         PlatformBreakdown
	RequestedQuantity int
	FulfilledQuantity int
	MovementID        *uuid.UUID
}

// NewStockOut creates an empty stock-out header
func NewStockOut(number, reason string, attribution Attribution) (*StockOut, error) {
	if strings.TrimSpace(number) == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Stock-out number cannot be empty")
	}
	return &StockOut{
		BaseEntity: shared.NewBaseEntity(),
		Number:     number,
		Reason:     strings.TrimSpace(reason),
		Actor:      attribution.ActorOrSystem(),
	}, nil
}

// AddItem appends a dispatched line
func (s *StockOut) AddItem(variantID uuid.UUID, breakdown PlatformBreakdown) (*StockOutItem, error) {
	if variantID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Stock-out item requires a variant")
	}
	if err := breakdown.Validate(); err != nil {
		return nil, err
	}
	s.Items = append(s.Items, StockOutItem{
		ID:                uuid.New(),
		StockOutID:        s.ID,
		VariantID:         variantID,
		Breakdown:         breakdown,
		RequestedQuantity: breakdown.Total(),
	})
	s.TotalQuantity += breakdown.Total()
	return &s.Items[len(s.Items)-1], nil
}

// Validate checks the document is ready to post
func (s *StockOut) Validate() error {
	if len(s.Items) == 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Stock-out must have at least one item")
	}
	return nil
}

// Reference returns the movement reference for this document
func (s *StockOut) Reference() Reference {
	return Reference{Type: ReferenceTypeStockOut, ID: s.Number}
}

// FulfilledTotal sums what was actually removed across items
func (s *StockOut) FulfilledTotal() int {
	total := 0
	for _, item := range s.Items {
		total += item.FulfilledQuantity
	}
	return total
}
