package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType classifies why a variant's quantity changed
type MovementType string

const (
	MovementTypeRestock      MovementType = "restock"
	MovementTypeSale         MovementType = "sale"
	MovementTypeAdjustment   MovementType = "adjustment"
	MovementTypeDamage       MovementType = "damage"
	MovementTypeLoss         MovementType = "loss"
	MovementTypeReturn       MovementType = "return"
	MovementTypeTransfer     MovementType = "transfer"
	MovementTypeInitialStock MovementType = "initial_stock"
	MovementTypeManualEdit   MovementType = "manual_edit"
)

// AllMovementTypes lists every movement type in display order
var AllMovementTypes = []MovementType{
	MovementTypeRestock,
	MovementTypeSale,
	MovementTypeAdjustment,
	MovementTypeDamage,
	MovementTypeLoss,
	MovementTypeReturn,
	MovementTypeTransfer,
	MovementTypeInitialStock,
	MovementTypeManualEdit,
}

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// IsValid returns true if the movement type is valid
func (t MovementType) IsValid() bool {
	for _, known := range AllMovementTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseMovementType parses a movement type case-insensitively
func ParseMovementType(s string) (MovementType, error) {
	t := MovementType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown movement type %q", s))
	}
	return t, nil
}

// Platform is a sales channel a stock-out can be attributed to
type Platform string

const (
	PlatformTikTok Platform = "tiktok"
	PlatformShopee Platform = "shopee"
	PlatformBazaar Platform = "bazaar"
	PlatformOthers Platform = "others"
)

// AllPlatforms lists every platform in breakdown column order
var AllPlatforms = []Platform{PlatformTikTok, PlatformShopee, PlatformBazaar, PlatformOthers}

// IsValid returns true if the platform is valid
func (p Platform) IsValid() bool {
	switch p {
	case PlatformTikTok, PlatformShopee, PlatformBazaar, PlatformOthers:
		return true
	}
	return false
}

// ParsePlatform parses a platform case-insensitively
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown platform %q", s))
	}
	return p, nil
}

// SystemActor is recorded when a change has no attributable user
const SystemActor = "system"

// Attribution identifies who made a change and from where
type Attribution struct {
	Actor     string
	IPAddress string
	UserAgent string
}

// ActorOrSystem returns the actor, or SystemActor when none was given
func (a Attribution) ActorOrSystem() string {
	if strings.TrimSpace(a.Actor) == "" {
		return SystemActor
	}
	return strings.TrimSpace(a.Actor)
}

// Reference points at the document or process that caused a movement
type Reference struct {
	Type string
	ID   string
}

// Common reference types
const (
	ReferenceTypeStockIn     = "stock_in"
	ReferenceTypeStockOut    = "stock_out"
	ReferenceTypeImportBatch = "import_batch"
	ReferenceTypeManual      = "manual"
)

// StockMovement is an append-only record of one quantity change on one variant.
// There are no mutators; corrections are new movements.
type StockMovement struct {
	ID             uuid.UUID
	VariantID      uuid.UUID
	Actor          string
	Type           MovementType
	QuantityBefore int
	QuantityChange int
	QuantityAfter  int
	ReferenceType  string
	ReferenceID    string
	Platform       *Platform
	Reason         string
	Notes          string
	UnitCost       decimal.NullDecimal
	TotalCost      decimal.NullDecimal
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
}

// MovementInput carries everything needed to record a movement
type MovementInput struct {
	VariantID      uuid.UUID
	Type           MovementType
	QuantityBefore int
	QuantityAfter  int
	Reason         string
	Notes          string
	Reference      Reference
	Platform       *Platform
	UnitCost       decimal.NullDecimal
	Attribution    Attribution
	At             time.Time
}

// NewStockMovement builds a movement and checks its arithmetic
func NewStockMovement(in MovementInput) (*StockMovement, error) {
	if in.VariantID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Movement requires a variant")
	}
	if !in.Type.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invalid movement type")
	}
	if in.QuantityBefore < 0 || in.QuantityAfter < 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Movement quantities cannot be negative")
	}
	if in.Platform != nil && !in.Platform.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invalid platform")
	}
	if in.UnitCost.Valid && in.UnitCost.Decimal.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unit cost cannot be negative")
	}

	at := in.At
	if at.IsZero() {
		at = time.Now()
	}

	change := in.QuantityAfter - in.QuantityBefore
	m := &StockMovement{
		ID:             uuid.New(),
		VariantID:      in.VariantID,
		Actor:          in.Attribution.ActorOrSystem(),
		Type:           in.Type,
		QuantityBefore: in.QuantityBefore,
		QuantityChange: change,
		QuantityAfter:  in.QuantityAfter,
		ReferenceType:  in.Reference.Type,
		ReferenceID:    in.Reference.ID,
		Platform:       in.Platform,
		Reason:         strings.TrimSpace(in.Reason),
		Notes:          in.Notes,
		UnitCost:       in.UnitCost,
		IPAddress:      in.Attribution.IPAddress,
		UserAgent:      in.Attribution.UserAgent,
		CreatedAt:      at,
	}
	if in.UnitCost.Valid {
		m.TotalCost = decimal.NewNullDecimal(in.UnitCost.Decimal.Mul(decimal.NewFromInt(int64(abs(change)))))
	}
	return m, nil
}

// IsBalanced reports whether after == before + change
func (m *StockMovement) IsBalanced() bool {
	return m.QuantityAfter == m.QuantityBefore+m.QuantityChange
}

// IsSystem returns true if nobody is attributed
func (m *StockMovement) IsSystem() bool {
	return m.Actor == SystemActor
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
