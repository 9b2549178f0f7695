package inventory

import (
	"context"
	"fmt"

	"github.com/erp/stockledger/internal/application/validation"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockDocumentService posts stock-in and stock-out documents.
// A document and all of its ledger writes commit or roll back together.
type StockDocumentService struct {
	ledger *LedgerService
	repo   inventory.StockDocumentRepository
}

// NewStockDocumentService creates a new StockDocumentService.
// repo serves reads outside a transaction.
func NewStockDocumentService(ledger *LedgerService, repo inventory.StockDocumentRepository) *StockDocumentService {
	return &StockDocumentService{ledger: ledger, repo: repo}
}

// CreateStockIn receives stock: one restock movement per item
func (s *StockDocumentService) CreateStockIn(ctx context.Context, req CreateStockInRequest) (*StockInResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_document", "create_stock_in")
	defer span.End()
	telemetry.SetAttributes(span, "items_count", len(req.Items))

	if err := validation.Struct(req, shared.CodeInvalidInput); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var doc *inventory.StockIn
	var events []shared.DomainEvent
	err := s.ledger.withRegenerate(ctx, "create_stock_in", func() error {
		return s.ledger.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			d, evts, err := s.postStockIn(ctx, repos, req)
			if err != nil {
				return err
			}
			doc, events = d, evts
			return nil
		})
	})
	if err != nil {
		s.ledger.recordFailure(ctx, "create_stock_in", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.ledger.publish(ctx, events...)
	logger.L(ctx).Info("stock-in posted",
		zap.String("number", doc.Number),
		zap.Int("items", len(doc.Items)),
		zap.Int("total_quantity", doc.TotalQuantity),
	)
	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentNumber, doc.Number)
	telemetry.SetOK(span)

	resp := ToStockInResponse(doc)
	return &resp, nil
}

func (s *StockDocumentService) postStockIn(ctx context.Context, repos TransactionalRepositories, req CreateStockInRequest) (*inventory.StockIn, []shared.DomainEvent, error) {
	now := s.ledger.now()
	number, err := repos.DocumentRepo().NextDocumentNumber(ctx, inventory.DocumentNumberStem(inventory.StockInNumberPrefix, now))
	if err != nil {
		return nil, nil, err
	}
	doc, err := inventory.NewStockIn(number, req.Reason, req.Attribution, req.ReceivedAt)
	if err != nil {
		return nil, nil, err
	}
	doc.Notes = req.Notes
	doc.CreatedAt, doc.UpdatedAt = now, now

	var events []shared.DomainEvent
	for _, line := range req.Items {
		if _, err := doc.AddItem(line.VariantID, line.Quantity, line.UnitCost); err != nil {
			return nil, nil, err
		}
		res, err := s.ledger.applyInTx(ctx, repos, AdjustStockRequest{
			VariantID:     line.VariantID,
			Mode:          AdjustModeAdd,
			Amount:        line.Quantity,
			MovementType:  inventory.MovementTypeRestock,
			Reason:        doc.Reason,
			Notes:         req.Notes,
			ReferenceType: inventory.ReferenceTypeStockIn,
			ReferenceID:   doc.Number,
			UnitCost:      line.UnitCost,
			Attribution:   req.Attribution,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("stock-in item %s: %w", line.VariantID, err)
		}
		if res.Changed {
			id := res.Movement.ID
			doc.Items[len(doc.Items)-1].MovementID = &id
			events = append(events, res.event)
		}
	}

	if err := doc.Validate(); err != nil {
		return nil, nil, err
	}
	if err := repos.DocumentRepo().CreateStockIn(ctx, doc); err != nil {
		return nil, nil, err
	}
	return doc, events, nil
}

// CreateStockOut dispatches stock: one sale movement per item.
// Each line removes at most what is on hand; the shortfall is visible as
// RequestedQuantity minus FulfilledQuantity.
func (s *StockDocumentService) CreateStockOut(ctx context.Context, req CreateStockOutRequest) (*StockOutResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_document", "create_stock_out")
	defer span.End()
	telemetry.SetAttributes(span, "items_count", len(req.Items))

	if err := validation.Struct(req, shared.CodeInvalidInput); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var doc *inventory.StockOut
	var events []shared.DomainEvent
	err := s.ledger.withRegenerate(ctx, "create_stock_out", func() error {
		return s.ledger.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			d, evts, err := s.postStockOut(ctx, repos, req)
			if err != nil {
				return err
			}
			doc, events = d, evts
			return nil
		})
	})
	if err != nil {
		s.ledger.recordFailure(ctx, "create_stock_out", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.ledger.publish(ctx, events...)
	if short := doc.TotalQuantity - doc.FulfilledTotal(); short > 0 {
		logger.L(ctx).Warn("stock-out exceeded stock on hand",
			zap.String("number", doc.Number),
			zap.Int("requested", doc.TotalQuantity),
			zap.Int("shortfall", short),
		)
	}
	logger.L(ctx).Info("stock-out posted",
		zap.String("number", doc.Number),
		zap.Int("items", len(doc.Items)),
		zap.Int("fulfilled", doc.FulfilledTotal()),
	)
	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentNumber, doc.Number)
	telemetry.SetOK(span)

	resp := ToStockOutResponse(doc)
	return &resp, nil
}

func (s *StockDocumentService) postStockOut(ctx context.Context, repos TransactionalRepositories, req CreateStockOutRequest) (*inventory.StockOut, []shared.DomainEvent, error) {
	now := s.ledger.now()
	number, err := repos.DocumentRepo().NextDocumentNumber(ctx, inventory.DocumentNumberStem(inventory.StockOutNumberPrefix, now))
	if err != nil {
		return nil, nil, err
	}
	doc, err := inventory.NewStockOut(number, req.Reason, req.Attribution)
	if err != nil {
		return nil, nil, err
	}
	doc.Notes = req.Notes
	doc.CreatedAt, doc.UpdatedAt = now, now

	var events []shared.DomainEvent
	for _, line := range req.Items {
		breakdown := line.Breakdown()
		if _, err := doc.AddItem(line.VariantID, breakdown); err != nil {
			return nil, nil, err
		}
		res, err := s.ledger.applyInTx(ctx, repos, AdjustStockRequest{
			VariantID:     line.VariantID,
			Mode:          AdjustModeSubtract,
			Amount:        breakdown.Total(),
			MovementType:  inventory.MovementTypeSale,
			Reason:        doc.Reason,
			Notes:         req.Notes,
			ReferenceType: inventory.ReferenceTypeStockOut,
			ReferenceID:   doc.Number,
			Platform:      breakdown.SinglePlatform(),
			Attribution:   req.Attribution,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("stock-out item %s: %w", line.VariantID, err)
		}
		item := &doc.Items[len(doc.Items)-1]
		if res.Changed {
			id := res.Movement.ID
			item.MovementID = &id
			item.FulfilledQuantity = -res.Movement.QuantityChange
			events = append(events, res.event)
		}
	}

	if err := doc.Validate(); err != nil {
		return nil, nil, err
	}
	if err := repos.DocumentRepo().CreateStockOut(ctx, doc); err != nil {
		return nil, nil, err
	}
	return doc, events, nil
}

// GetStockIn returns a posted stock-in with its items
func (s *StockDocumentService) GetStockIn(ctx context.Context, id uuid.UUID) (*StockInResponse, error) {
	doc, err := s.repo.FindStockInByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToStockInResponse(doc)
	return &resp, nil
}

// GetStockOut returns a posted stock-out with its items
func (s *StockDocumentService) GetStockOut(ctx context.Context, id uuid.UUID) (*StockOutResponse, error) {
	doc, err := s.repo.FindStockOutByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToStockOutResponse(doc)
	return &resp, nil
}
