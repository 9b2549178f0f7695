package inventory

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// MovementFilter narrows movement queries. Zero values mean "any".
type MovementFilter struct {
	shared.Filter
	VariantID     *uuid.UUID
	Types         []MovementType
	Actor         string
	Platform      *Platform
	ReferenceType string
	ReferenceID   string
	From          *time.Time
	To            *time.Time
}

// MovementRepository is the append-only store of stock movements.
// It has no update or delete methods.
type MovementRepository interface {
	// Append inserts a new movement; it must run in the same transaction as the quantity write
	Append(ctx context.Context, movement *StockMovement) error

	FindByID(ctx context.Context, id uuid.UUID) (*StockMovement, error)

	// FindAll returns a page of movements, newest first unless the filter orders otherwise
	FindAll(ctx context.Context, filter MovementFilter) ([]StockMovement, int64, error)

	CountByVariant(ctx context.Context, variantID uuid.UUID) (int64, error)
}

// StockDocumentRepository persists stock-in and stock-out documents with their items
type StockDocumentRepository interface {
	CreateStockIn(ctx context.Context, doc *StockIn) error
	CreateStockOut(ctx context.Context, doc *StockOut) error

	FindStockInByID(ctx context.Context, id uuid.UUID) (*StockIn, error)
	FindStockOutByID(ctx context.Context, id uuid.UUID) (*StockOut, error)

	// NextDocumentNumber returns stem + the next free 4-digit sequence
	NextDocumentNumber(ctx context.Context, stem string) (string, error)
}

// CategoryQuantity is the stock held under one category
type CategoryQuantity struct {
	CategoryID    uuid.UUID
	CategoryName  string
	VariantCount  int64
	TotalQuantity int64
}

// PlatformTotal is the quantity dispatched through one platform
type PlatformTotal struct {
	Platform Platform
	Quantity int64
}

// DailyMovement summarizes movement changes for one calendar day (UTC)
type DailyMovement struct {
	Day           time.Time
	MovementCount int64
	QuantityIn    int64
	QuantityOut   int64
}

// Net returns QuantityIn - QuantityOut
func (d DailyMovement) Net() int64 {
	return d.QuantityIn - d.QuantityOut
}

// ReportRange bounds aggregate queries. Nil ends are open.
type ReportRange struct {
	From *time.Time
	To   *time.Time
}

// StockReportRepository runs the aggregate read queries
type StockReportRepository interface {
	SumQuantityByCategory(ctx context.Context) ([]CategoryQuantity, error)
	SumStockOutByPlatform(ctx context.Context, r ReportRange) ([]PlatformTotal, error)
	SumMovementsByDay(ctx context.Context, r ReportRange) ([]DailyMovement, error)
}
