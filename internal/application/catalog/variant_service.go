package catalog

import (
	"context"
	"errors"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/application/validation"
	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxSKURegenerations bounds retries when a regenerated SKU loses a race
const maxSKURegenerations = 3

// VariantService edits variants outside the ledger: attributes, reorder
// level, activity and soft delete. Quantity is never written here.
type VariantService struct {
	ledger   *appinv.LedgerService
	variants catalog.VariantRepository
	now      func() time.Time
}

// NewVariantService creates a new VariantService
func NewVariantService(ledger *appinv.LedgerService, variants catalog.VariantRepository) *VariantService {
	return &VariantService{ledger: ledger, variants: variants, now: time.Now}
}

// UpdateVariant applies the non-nil fields of req. A change to the SKU
// identity (size, color, material, variant initial) or a move to another
// product regenerates the SKU. Other edits keep it.
func (s *VariantService) UpdateVariant(ctx context.Context, id uuid.UUID, req UpdateVariantRequest) (*appinv.VariantResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "update_variant")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrVariantID, id.String())

	if err := validation.Struct(req, shared.CodeInvalidInput); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if req.ProductID != nil && *req.ProductID == uuid.Nil {
		err := shared.NewDomainError(shared.CodeInvalidInput, "product_id cannot be empty")
		telemetry.RecordError(span, err)
		return nil, err
	}

	var variant *catalog.ProductVariant
	var oldSKU string
	var err error
	for attempt := 1; attempt <= maxSKURegenerations; attempt++ {
		err = s.ledger.InTransaction(ctx, "update_variant", func(ctx context.Context, tx *appinv.LedgerTx) error {
			repos := tx.Repos()
			v, err := repos.VariantRepo().FindByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			oldSKU = v.SKU

			name, attrs := req.apply(v.Name, v.Attributes)
			identityChanged := v.UpdateDetails(name, attrs)
			if req.Notes != nil {
				v.SetNotes(*req.Notes)
			}
			if req.UnitCost != nil {
				if err := v.SetUnitCost(*req.UnitCost); err != nil {
					return err
				}
			}
			if req.IsActive != nil {
				v.SetActive(*req.IsActive)
			}

			moved := false
			if req.ProductID != nil && *req.ProductID != v.ProductID {
				// the target must be a live product
				if _, err := repos.ProductRepo().FindByID(ctx, *req.ProductID); err != nil {
					return err
				}
				moved = v.MoveToProduct(*req.ProductID)
			}

			if identityChanged || moved {
				product, err := repos.ProductRepo().FindByID(ctx, v.ProductID)
				if err != nil {
					return err
				}
				sku, err := catalog.NewSKUGenerator(repos.VariantRepo()).GenerateWithPrefix(ctx, product.SKUPrefix(), v.Attributes, v.ID)
				if err != nil {
					return err
				}
				if err := v.AssignSKU(sku); err != nil {
					return err
				}
			}
			if err := repos.VariantRepo().SaveWithLock(ctx, v); err != nil {
				return err
			}
			variant = v
			return nil
		})
		if err == nil || !errors.Is(err, shared.ErrAlreadyExists) {
			break
		}
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if variant.SKU != oldSKU {
		logger.L(ctx).Info("variant SKU regenerated",
			zap.String("variant_id", id.String()),
			zap.String("old_sku", oldSKU),
			zap.String("sku", variant.SKU),
		)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrSKU, variant.SKU)
	telemetry.SetOK(span)
	resp := appinv.ToVariantResponse(variant)
	return &resp, nil
}

// SetReorderLevel changes the threshold and re-derives status from the
// current quantity. No movement is written since quantity is unchanged.
func (s *VariantService) SetReorderLevel(ctx context.Context, id uuid.UUID, level int) (*appinv.VariantResponse, error) {
	var variant *catalog.ProductVariant
	var oldStatus catalog.StockStatus
	err := s.ledger.InTransaction(ctx, "set_reorder_level", func(ctx context.Context, tx *appinv.LedgerTx) error {
		v, err := tx.Repos().VariantRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		oldStatus = v.Status
		if err := v.SetReorderLevel(level); err != nil {
			return err
		}
		if err := tx.Repos().VariantRepo().SaveWithLock(ctx, v); err != nil {
			return err
		}
		variant = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	if oldStatus != variant.Status {
		logger.L(ctx).Info("variant status re-derived",
			zap.String("variant_id", id.String()),
			zap.Int("reorder_level", level),
			zap.String("old_status", oldStatus.String()),
			zap.String("status", variant.Status.String()),
		)
	}
	resp := appinv.ToVariantResponse(variant)
	return &resp, nil
}

// ArchiveVariant soft-deletes a variant. Its SKU stays reserved and its
// movements remain queryable.
func (s *VariantService) ArchiveVariant(ctx context.Context, id uuid.UUID) error {
	err := s.ledger.InTransaction(ctx, "archive_variant", func(ctx context.Context, tx *appinv.LedgerTx) error {
		v, err := tx.Repos().VariantRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := v.ArchiveAt(s.now().UTC().Truncate(time.Microsecond)); err != nil {
			return err
		}
		return tx.Repos().VariantRepo().SaveWithLock(ctx, v)
	})
	if err != nil {
		return err
	}
	logger.L(ctx).Info("variant archived", zap.String("variant_id", id.String()))
	return nil
}

// RestoreVariant brings back an archived variant. The owning product must be live.
func (s *VariantService) RestoreVariant(ctx context.Context, id uuid.UUID) (*appinv.VariantResponse, error) {
	var variant *catalog.ProductVariant
	err := s.ledger.InTransaction(ctx, "restore_variant", func(ctx context.Context, tx *appinv.LedgerTx) error {
		repos := tx.Repos()
		v, err := repos.VariantRepo().FindByIDIncludingArchived(ctx, id)
		if err != nil {
			return err
		}
		if _, err := repos.ProductRepo().FindByID(ctx, v.ProductID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewDomainError(shared.CodeInvalidState, "Restore the product before its variants")
			}
			return err
		}
		if err := v.Unarchive(); err != nil {
			return err
		}
		if err := repos.VariantRepo().SaveWithLock(ctx, v); err != nil {
			return err
		}
		variant = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.L(ctx).Info("variant restored", zap.String("variant_id", id.String()))
	resp := appinv.ToVariantResponse(variant)
	return &resp, nil
}

// GetVariant returns a live variant
func (s *VariantService) GetVariant(ctx context.Context, id uuid.UUID) (*appinv.VariantResponse, error) {
	v, err := s.variants.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := appinv.ToVariantResponse(v)
	return &resp, nil
}

// GetVariantBySKU returns a live variant by exact SKU
func (s *VariantService) GetVariantBySKU(ctx context.Context, sku string) (*appinv.VariantResponse, error) {
	v, err := s.variants.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	resp := appinv.ToVariantResponse(v)
	return &resp, nil
}

// ListVariants returns a page of variants
func (s *VariantService) ListVariants(ctx context.Context, filter VariantListFilter) (*shared.Paginated[appinv.VariantResponse], error) {
	if err := validation.Struct(filter, shared.CodeInvalidInput); err != nil {
		return nil, err
	}

	f := catalog.VariantFilter{
		Filter:          pageFilter(filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir, filter.Search),
		ProductID:       filter.ProductID,
		CategoryID:      filter.CategoryID,
		SubCategoryID:   filter.SubCategoryID,
		IncludeArchived: filter.IncludeArchived,
	}
	if filter.StockStatus != "" {
		status := catalog.StockStatus(filter.StockStatus)
		f.StockStatus = &status
	}

	variants, total, err := s.variants.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(appinv.ToVariantResponses(variants), total, f.Page, f.PageSize)
	return &page, nil
}
