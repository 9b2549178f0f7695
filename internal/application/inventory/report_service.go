package inventory

import (
	"context"
	"fmt"

	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
)

// StatusCounter counts live variants per stock status
type StatusCounter interface {
	CountByStockStatus(ctx context.Context) (map[catalog.StockStatus]int64, error)
}

// ReportService computes the stock aggregates
type ReportService struct {
	reports  inventory.StockReportRepository
	variants StatusCounter
}

// NewReportService creates a new ReportService
func NewReportService(reports inventory.StockReportRepository, variants StatusCounter) *ReportService {
	return &ReportService{reports: reports, variants: variants}
}

// QuantityByCategory sums stock on hand per category
func (s *ReportService) QuantityByCategory(ctx context.Context) ([]inventory.CategoryQuantity, error) {
	return s.reports.SumQuantityByCategory(ctx)
}

// StockOutByPlatform sums dispatched quantity per platform within r
func (s *ReportService) StockOutByPlatform(ctx context.Context, r inventory.ReportRange) ([]inventory.PlatformTotal, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	return s.reports.SumStockOutByPlatform(ctx, r)
}

// MovementsByDay sums movement changes per UTC day within r
func (s *ReportService) MovementsByDay(ctx context.Context, r inventory.ReportRange) ([]inventory.DailyMovement, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	return s.reports.SumMovementsByDay(ctx, r)
}

// Summary gathers status counts and all three aggregates
func (s *ReportService) Summary(ctx context.Context, r inventory.ReportRange) (*StockSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "summary")
	defer span.End()

	if err := validateRange(r); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	counts, err := s.variants.CountByStockStatus(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to count variants by status: %w", err)
	}
	byCategory, err := s.reports.SumQuantityByCategory(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to sum quantity by category: %w", err)
	}
	byPlatform, err := s.reports.SumStockOutByPlatform(ctx, r)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to sum stock-out by platform: %w", err)
	}
	byDay, err := s.reports.SumMovementsByDay(ctx, r)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to sum movements by day: %w", err)
	}

	telemetry.SetOK(span)
	return &StockSummary{
		StatusCounts: counts,
		ByCategory:   byCategory,
		ByPlatform:   byPlatform,
		ByDay:        byDay,
	}, nil
}

func validateRange(r inventory.ReportRange) error {
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return shared.NewDomainError(shared.CodeInvalidInput, "'to' must not be before 'from'")
	}
	return nil
}
