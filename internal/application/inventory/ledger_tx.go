package inventory

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/application/validation"
	"github.com/erp/stockledger/internal/domain/shared"
)

// LedgerTx exposes ledger writes inside a transaction opened by InTransaction.
// Callers outside this package (imports, catalog maintenance) use it to combine
// ledger writes with their own repository work in one unit.
type LedgerTx struct {
	ledger  *LedgerService
	repos   TransactionalRepositories
	events  []shared.DomainEvent
	changes []MovementResponse
}

// Repos returns the repositories bound to the transaction
func (t *LedgerTx) Repos() TransactionalRepositories {
	return t.repos
}

// AdjustStock applies one ledger write in the transaction.
// Idempotency keys are not honored here; the enclosing unit owns retries.
func (t *LedgerTx) AdjustStock(ctx context.Context, req AdjustStockRequest) (*AdjustStockResult, error) {
	if err := validation.Struct(req, shared.CodeInvalidInput); err != nil {
		return nil, err
	}
	result, err := t.ledger.applyInTx(ctx, t.repos, req)
	if err != nil {
		return nil, err
	}
	if result.Changed {
		t.events = append(t.events, result.event)
		t.changes = append(t.changes, *result.Movement)
	}
	return result, nil
}

// CreateVariant inserts a variant with its opening stock in the transaction
func (t *LedgerTx) CreateVariant(ctx context.Context, req CreateVariantRequest) (*CreateVariantResult, error) {
	if err := validation.Struct(req, shared.CodeInvalidInput); err != nil {
		return nil, err
	}
	result, err := t.ledger.createVariantInTx(ctx, t.repos, req)
	if err != nil {
		return nil, err
	}
	if result.event != nil {
		t.events = append(t.events, result.event)
		t.changes = append(t.changes, *result.Movement)
	}
	return result, nil
}

// Defer queues an event for publication after commit
func (t *LedgerTx) Defer(events ...shared.DomainEvent) {
	t.events = append(t.events, events...)
}

// InTransaction runs fn in one transaction, rerunning it on version conflicts.
// Events queued by fn are published and metrics recorded only after commit.
func (s *LedgerService) InTransaction(ctx context.Context, operation string, fn func(ctx context.Context, tx *LedgerTx) error) error {
	started := s.now()
	var committed *LedgerTx
	err := s.withRetry(ctx, operation, func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			tx := &LedgerTx{ledger: s, repos: repos}
			if err := fn(ctx, tx); err != nil {
				return err
			}
			committed = tx
			return nil
		})
	})
	if err != nil {
		s.recordFailure(ctx, operation, err)
		return err
	}

	if s.metrics != nil {
		elapsed := s.now().Sub(started)
		for _, m := range committed.changes {
			s.metrics.RecordAdjustment(ctx, string(m.Type), m.QuantityChange, elapsed/time.Duration(len(committed.changes)))
		}
	}
	s.publish(ctx, committed.events...)
	return nil
}
