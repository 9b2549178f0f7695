package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/stockledger/internal/application/validation"
	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerMetrics receives ledger outcomes. telemetry.LedgerMetrics implements it.
type LedgerMetrics interface {
	RecordAdjustment(ctx context.Context, movementType string, change int, duration time.Duration)
	RecordConflict(ctx context.Context, operation string)
	RecordFailure(ctx context.Context, operation, code string)
}

// LedgerConfig tunes retries and defaults of the ledger
type LedgerConfig struct {
	MaxRetries          int
	RetryBackoff        time.Duration
	IdempotencyTTL      time.Duration
	SKUMaxAttempts      int
	DefaultReorderLevel int
}

// DefaultLedgerConfig returns the defaults used when no configuration is supplied
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		MaxRetries:          5,
		RetryBackoff:        10 * time.Millisecond,
		IdempotencyTTL:      24 * time.Hour,
		SKUMaxAttempts:      5,
		DefaultReorderLevel: catalog.DefaultReorderLevel,
	}
}

// LedgerService is the only writer of variant quantities.
// Every change locks the variant row, recomputes status and appends exactly
// one movement inside a single transaction.
type LedgerService struct {
	scope          TransactionScope
	config         LedgerConfig
	idempotency    shared.IdempotencyStore
	eventPublisher shared.EventPublisher
	metrics        LedgerMetrics
	now            func() time.Time
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(scope TransactionScope, config LedgerConfig) *LedgerService {
	defaults := DefaultLedgerConfig()
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.SKUMaxAttempts <= 0 {
		config.SKUMaxAttempts = defaults.SKUMaxAttempts
	}
	if config.IdempotencyTTL <= 0 {
		config.IdempotencyTTL = defaults.IdempotencyTTL
	}
	if config.DefaultReorderLevel < 0 {
		config.DefaultReorderLevel = defaults.DefaultReorderLevel
	}
	return &LedgerService{
		scope:  scope,
		config: config,
		now:    time.Now,
	}
}

// SetIdempotencyStore enables idempotency keys on AdjustStock
func (s *LedgerService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// SetEventPublisher sets the publisher used after commit
func (s *LedgerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the metrics recorder
func (s *LedgerService) SetMetrics(metrics LedgerMetrics) {
	s.metrics = metrics
}

// SetClock overrides the time source; tests use it to pin movement timestamps
func (s *LedgerService) SetClock(now func() time.Time) {
	s.now = now
}

// AdjustStock applies one add, subtract or set to a variant.
//
// Subtract clamps at zero and records the change actually applied. A request
// that resolves to no change writes nothing and returns Changed=false.
func (s *LedgerService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*AdjustStockResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "adjust_stock")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrVariantID, req.VariantID.String(),
		telemetry.SpanAttrAdjustMode, string(req.Mode),
		telemetry.SpanAttrQuantity, req.Amount,
	)

	if err := req.validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	started := s.now()
	claimed, err := s.claim(ctx, req.IdempotencyKey)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result *AdjustStockResult
	err = s.withRetry(ctx, "adjust_stock", func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			r, err := s.applyInTx(ctx, repos, req)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		if claimed {
			s.release(ctx, req.IdempotencyKey)
		}
		s.recordFailure(ctx, "adjust_stock", err)
		telemetry.RecordError(span, err)
		logger.L(ctx).Warn("stock adjustment failed",
			zap.String("variant_id", req.VariantID.String()),
			zap.String("mode", string(req.Mode)),
			zap.Int("amount", req.Amount),
			zap.Error(err),
		)
		return nil, err
	}

	if result.Changed {
		if s.metrics != nil {
			s.metrics.RecordAdjustment(ctx, string(result.Movement.Type), result.Movement.QuantityChange, s.now().Sub(started))
		}
		s.publish(ctx, result.event)
		logger.L(ctx).Info("stock adjusted",
			zap.String("variant_id", result.VariantID.String()),
			zap.String("sku", result.SKU),
			zap.Int("quantity_before", result.QuantityBefore),
			zap.Int("quantity_after", result.QuantityAfter),
			zap.String("status", result.Status.String()),
		)
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSKU, result.SKU,
		"changed", result.Changed,
		"quantity_after", result.QuantityAfter,
	)
	telemetry.SetOK(span)
	return result, nil
}

// applyInTx performs the ledger write against repos, which must belong to an open transaction.
// Stock documents and imports call it to batch several writes into one unit.
func (s *LedgerService) applyInTx(ctx context.Context, repos TransactionalRepositories, req AdjustStockRequest) (*AdjustStockResult, error) {
	variant, err := repos.VariantRepo().FindByIDForUpdate(ctx, req.VariantID)
	if err != nil {
		return nil, err
	}

	before := variant.QuantityInStock
	oldStatus := variant.Status
	target := targetQuantity(req.Mode, before, req.Amount)

	result := &AdjustStockResult{
		VariantID:      variant.ID,
		SKU:            variant.SKU,
		QuantityBefore: before,
		QuantityAfter:  before,
		Status:         variant.Status,
		PreviousStatus: oldStatus,
	}
	if target == before {
		return result, nil
	}

	unitCost := req.UnitCost
	if !unitCost.Valid {
		unitCost = variant.UnitCost
	}

	now := s.now()
	movement, err := inventory.NewStockMovement(inventory.MovementInput{
		VariantID:      variant.ID,
		Type:           req.movementType(),
		QuantityBefore: before,
		QuantityAfter:  target,
		Reason:         req.Reason,
		Notes:          req.Notes,
		Reference:      req.reference(),
		Platform:       req.Platform,
		UnitCost:       unitCost,
		Attribution:    req.Attribution,
		At:             now,
	})
	if err != nil {
		return nil, err
	}

	variant.ApplyQuantity(target, now)
	if err := repos.VariantRepo().SaveWithLock(ctx, variant); err != nil {
		return nil, err
	}
	if err := repos.MovementRepo().Append(ctx, movement); err != nil {
		return nil, fmt.Errorf("failed to append movement: %w", err)
	}

	resp := ToMovementResponse(movement)
	result.Changed = true
	result.QuantityAfter = variant.QuantityInStock
	result.Status = variant.Status
	result.Movement = &resp
	result.event = catalog.NewStockLevelChangedEvent(variant, movement.ID, string(movement.Type), before, oldStatus)
	return result, nil
}

// targetQuantity resolves the requested quantity, never below zero
func targetQuantity(mode AdjustMode, current, amount int) int {
	var target int
	switch mode {
	case AdjustModeAdd:
		target = current + amount
	case AdjustModeSubtract:
		target = current - min(amount, current)
	default:
		target = amount
	}
	return max(target, 0)
}

// CreateVariantWithInitialStock inserts a variant and, when InitialQuantity > 0,
// its initial_stock movement in one transaction. A generated SKU that loses a
// race against a concurrent insert is regenerated in a fresh attempt.
func (s *LedgerService) CreateVariantWithInitialStock(ctx context.Context, req CreateVariantRequest) (*CreateVariantResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "create_variant")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrProductID, req.ProductID.String(),
		telemetry.SpanAttrQuantity, req.InitialQuantity,
	)

	if err := validation.Struct(req, shared.CodeInvalidInput); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result *CreateVariantResult
	run := func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			r, err := s.createVariantInTx(ctx, repos, req)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	}
	var err error
	if req.SKU != "" {
		err = s.withRetry(ctx, "create_variant", run)
	} else {
		err = s.withRegenerate(ctx, "create_variant", run)
	}
	if err != nil {
		s.recordFailure(ctx, "create_variant", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if result.event != nil {
		s.publish(ctx, result.event)
	}
	logger.L(ctx).Info("variant created",
		zap.String("variant_id", result.Variant.ID.String()),
		zap.String("sku", result.Variant.SKU),
		zap.Int("initial_quantity", result.Variant.QuantityInStock),
	)
	telemetry.SetAttributes(span, telemetry.SpanAttrSKU, result.Variant.SKU)
	telemetry.SetOK(span)
	return result, nil
}

func (s *LedgerService) createVariantInTx(ctx context.Context, repos TransactionalRepositories, req CreateVariantRequest) (*CreateVariantResult, error) {
	product, err := repos.ProductRepo().FindByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	reorderLevel := s.config.DefaultReorderLevel
	if req.ReorderLevel != nil {
		reorderLevel = *req.ReorderLevel
	}

	variant, err := catalog.NewProductVariant(product.ID, req.Name, req.Attributes(), reorderLevel)
	if err != nil {
		return nil, err
	}

	sku := req.SKU
	if sku == "" {
		sku, err = catalog.NewSKUGenerator(repos.VariantRepo()).GenerateWithPrefix(ctx, product.SKUPrefix(), variant.Attributes, uuid.Nil)
		if err != nil {
			return nil, err
		}
	} else {
		exists, err := repos.VariantRepo().SKUExists(ctx, sku, uuid.Nil)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, shared.NewDomainError(shared.CodeAlreadyExists, fmt.Sprintf("SKU %q is already in use", sku))
		}
	}
	if err := variant.AssignSKU(sku); err != nil {
		return nil, err
	}
	if req.UnitCost.Valid && req.UnitCost.Decimal.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unit cost cannot be negative")
	}
	variant.Notes = req.Notes
	variant.UnitCost = req.UnitCost

	result := &CreateVariantResult{}
	var movement *inventory.StockMovement
	if req.InitialQuantity > 0 {
		now := s.now()
		ref := inventory.Reference{Type: req.ReferenceType, ID: req.ReferenceID}
		movement, err = inventory.NewStockMovement(inventory.MovementInput{
			VariantID:      variant.ID,
			Type:           inventory.MovementTypeInitialStock,
			QuantityBefore: 0,
			QuantityAfter:  req.InitialQuantity,
			Reason:         req.Reason,
			Reference:      ref,
			UnitCost:       variant.UnitCost,
			Attribution:    req.Attribution,
			At:             now,
		})
		if err != nil {
			return nil, err
		}
		variant.ApplyQuantity(req.InitialQuantity, now)
	}

	if err := repos.VariantRepo().Create(ctx, variant); err != nil {
		return nil, err
	}
	if movement != nil {
		if err := repos.MovementRepo().Append(ctx, movement); err != nil {
			return nil, fmt.Errorf("failed to append movement: %w", err)
		}
		resp := ToMovementResponse(movement)
		result.Movement = &resp
		result.event = catalog.NewStockLevelChangedEvent(variant, movement.ID, string(movement.Type), 0, catalog.StockStatusOutOfStock)
	}
	result.Variant = ToVariantResponse(variant)
	return result, nil
}

// withRetry reruns fn while it fails with a retryable conflict
func (s *LedgerService) withRetry(ctx context.Context, operation string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		err = fn()
		if err == nil || !shared.IsRetryable(err) {
			return err
		}
		if s.metrics != nil {
			s.metrics.RecordConflict(ctx, operation)
		}
		logger.L(ctx).Debug("concurrency conflict, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
		)
		if attempt == s.config.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.config.RetryBackoff * time.Duration(attempt)):
		}
	}
	return err
}

// withRegenerate reruns fn when a generated unique value (SKU or document
// number) was taken by a concurrent insert. Each attempt re-reads the sequence.
func (s *LedgerService) withRegenerate(ctx context.Context, operation string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.config.SKUMaxAttempts; attempt++ {
		err = s.withRetry(ctx, operation, fn)
		if err == nil || !errors.Is(err, shared.ErrAlreadyExists) {
			return err
		}
		logger.L(ctx).Debug("generated identifier collided, regenerating",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
		)
	}
	return err
}

// claim reserves an idempotency key. It reports whether the caller owns the key.
func (s *LedgerService) claim(ctx context.Context, key string) (bool, error) {
	if key == "" || s.idempotency == nil {
		return false, nil
	}
	ok, err := s.idempotency.MarkProcessed(ctx, key, s.config.IdempotencyTTL)
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if !ok {
		return false, shared.NewDomainError(shared.CodeDuplicateRequest, fmt.Sprintf("request %q was already processed", key))
	}
	return true, nil
}

func (s *LedgerService) release(ctx context.Context, key string) {
	if err := s.idempotency.Release(ctx, key); err != nil {
		logger.L(ctx).Error("failed to release idempotency key",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// publish sends events after commit; delivery errors are logged, not returned
func (s *LedgerService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		logger.L(ctx).Error("failed to publish ledger events", zap.Error(err))
	}
}

func (s *LedgerService) recordFailure(ctx context.Context, operation string, err error) {
	if s.metrics == nil {
		return
	}
	code := "INTERNAL"
	var de *shared.DomainError
	if errors.As(err, &de) {
		code = de.Code
	}
	s.metrics.RecordFailure(ctx, operation, code)
}
