// Package importapp reconciles stock sheets against the catalog. Every row
// becomes at most one ledger write so bulk changes keep a complete audit trail.
package importapp

import (
	"context"
	"errors"
	"fmt"
	"io"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	csvimport "github.com/erp/stockledger/internal/infrastructure/import"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImportReason is written on every movement an import creates
const ImportReason = "Stock sheet import"

// Config tunes a batch import
type Config struct {
	MaxErrors   int    // errors kept in the result; later ones are only counted
	Actor       string // recorded on movements when the context carries no actor
	MaxFileSize int64
}

// DefaultConfig returns the settings used when none are configured
func DefaultConfig() Config {
	return Config{MaxErrors: 100, Actor: "importer", MaxFileSize: 10 << 20}
}

// ImportMetrics receives row outcomes. telemetry.LedgerMetrics implements it.
type ImportMetrics interface {
	RecordImportRows(ctx context.Context, result string, count int)
}

// ImportResult summarizes one batch. Errors are itemized by line number.
type ImportResult struct {
	BatchID     string               `json:"batch_id"`
	TotalRows   int                  `json:"total_rows"`
	Imported    int                  `json:"imported"`
	Updated     int                  `json:"updated"`
	Skipped     int                  `json:"skipped"`
	Errors      []csvimport.RowError `json:"errors,omitempty"`
	TotalErrors int                  `json:"total_errors,omitempty"`
	IsTruncated bool                 `json:"is_truncated,omitempty"`
}

// ErrAllRowsFailed is returned together with the result when no row succeeded
var ErrAllRowsFailed = shared.NewDomainError(shared.CodeValidationFailed, "Every import row failed")

// ImportService runs batch imports through the ledger
type ImportService struct {
	ledger  *appinv.LedgerService
	config  Config
	metrics ImportMetrics
}

// NewImportService creates a new ImportService
func NewImportService(ledger *appinv.LedgerService, config Config) *ImportService {
	defaults := DefaultConfig()
	if config.MaxErrors <= 0 {
		config.MaxErrors = defaults.MaxErrors
	}
	if config.Actor == "" {
		config.Actor = defaults.Actor
	}
	return &ImportService{ledger: ledger, config: config}
}

// SetMetrics sets the metrics recorder
func (s *ImportService) SetMetrics(metrics ImportMetrics) {
	s.metrics = metrics
}

type rowOutcome int

const (
	outcomeImported rowOutcome = iota
	outcomeUpdated
)

// ImportCSV parses a stock sheet and processes it as one batch. Lines that
// fail to parse or validate are counted as skipped alongside reconciliation failures.
func (s *ImportService) ImportCSV(ctx context.Context, r io.Reader, source string) (*ImportResult, error) {
	opts := []csvimport.ParserOption{csvimport.WithHeaderAliases(HeaderAliases)}
	if s.config.MaxFileSize > 0 {
		opts = append(opts, csvimport.WithMaxSize(s.config.MaxFileSize))
	}
	parser, err := csvimport.NewCSVParser(r, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", source, err)
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", source, err)
	}
	if !parser.HasHeader(ColSKU) && !parser.HasHeader(ColProductName) {
		return nil, shared.NewDomainError(shared.CodeValidationFailed,
			fmt.Sprintf("%s has neither a %s nor a %s column", source, ColSKU, ColProductName))
	}

	errs := csvimport.NewErrorCollection(s.config.MaxErrors)
	raw, err := parser.ReadAllRows(errs)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}
	total := len(raw) + errs.TotalCount()
	rows := DecodeRows(raw, errs)

	logger.L(ctx).Info("stock sheet parsed",
		zap.String("source", source),
		zap.String("encoding", string(parser.Encoding())),
		zap.Int("rows", total),
		zap.Int("rejected", errs.TotalCount()),
	)
	return s.run(ctx, rows, errs, total)
}

// ProcessImportBatch reconciles rows one by one, each in its own transaction.
// A failing row is recorded and skipped. The error is non-nil only when every
// row failed; the result is returned either way.
func (s *ImportService) ProcessImportBatch(ctx context.Context, rows []ImportRow) (*ImportResult, error) {
	return s.run(ctx, rows, csvimport.NewErrorCollection(s.config.MaxErrors), len(rows))
}

func (s *ImportService) run(ctx context.Context, rows []ImportRow, errs *csvimport.ErrorCollection, total int) (*ImportResult, error) {
	batchID := uuid.NewString()
	ctx = logger.WithImportBatch(ctx, batchID)
	ctx, span := telemetry.StartServiceSpan(ctx, "import", "process_batch")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrImportBatch, batchID,
		telemetry.SpanAttrRowCount, total,
	)

	result := &ImportResult{BatchID: batchID, TotalRows: total}
	result.Skipped = errs.TotalCount()

	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels("import_batch", nil), func(ctx context.Context) {
		for _, row := range rows {
			if ctx.Err() != nil {
				errs.Add(csvimport.NewRowError(row.Line, "", csvimport.ErrCodeReconciliation, ctx.Err().Error()))
				result.Skipped++
				continue
			}
			outcome, err := s.processRow(ctx, batchID, row)
			if err != nil {
				logger.L(ctx).Warn("import row skipped",
					zap.Int("row", row.Line),
					zap.Any("payload", row),
					zap.Error(err),
				)
				errs.Add(rowError(row, err))
				result.Skipped++
				continue
			}
			switch outcome {
			case outcomeImported:
				result.Imported++
			case outcomeUpdated:
				result.Updated++
			}
		}
	})

	result.Errors = errs.Errors()
	result.TotalErrors = errs.TotalCount()
	result.IsTruncated = errs.IsTruncated()
	s.recordMetrics(ctx, result)

	logger.L(ctx).Info("import batch finished",
		zap.Int("total", result.TotalRows),
		zap.Int("imported", result.Imported),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	)

	if result.TotalRows > 0 && result.Skipped >= result.TotalRows {
		telemetry.RecordError(span, ErrAllRowsFailed)
		return result, ErrAllRowsFailed
	}
	telemetry.SetOK(span)
	return result, nil
}

func (s *ImportService) processRow(ctx context.Context, batchID string, row ImportRow) (rowOutcome, error) {
	var outcome rowOutcome
	err := s.ledger.InTransaction(ctx, "import_row", func(ctx context.Context, tx *appinv.LedgerTx) error {
		variant, matchedBySKU, err := resolveVariant(ctx, tx.Repos(), row)
		if err != nil {
			return err
		}
		if variant == nil {
			outcome = outcomeImported
			return s.createFromRow(ctx, tx, batchID, row)
		}
		outcome = outcomeUpdated
		return s.updateFromRow(ctx, tx, batchID, row, variant.ID, matchedBySKU)
	})
	return outcome, err
}

// resolveVariant tries the exact SKU, then product plus variation name, then
// the product's first variant when no variation is given. A nil variant means
// nothing matched.
func resolveVariant(ctx context.Context, repos appinv.TransactionalRepositories, row ImportRow) (*catalog.ProductVariant, bool, error) {
	if row.SKU != "" {
		v, err := repos.VariantRepo().FindBySKU(ctx, row.SKU)
		if err == nil {
			return v, true, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, false, err
		}
	}
	if row.ProductName == "" {
		return nil, false, nil
	}

	product, err := repos.ProductRepo().FindByName(ctx, row.ProductName)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var v *catalog.ProductVariant
	if row.VariationName != "" {
		v, err = repos.VariantRepo().FindByProductAndName(ctx, product.ID, row.VariationName)
	} else {
		v, err = repos.VariantRepo().FindFirstByProduct(ctx, product.ID)
	}
	if errors.Is(err, shared.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, false, nil
}

func (s *ImportService) createFromRow(ctx context.Context, tx *appinv.LedgerTx, batchID string, row ImportRow) error {
	if err := requireNewVariantFields(row); err != nil {
		return err
	}
	repos := tx.Repos()

	product, err := repos.ProductRepo().FindByName(ctx, row.ProductName)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		product, err = catalog.NewProduct(row.ProductName)
		if err != nil {
			return err
		}
		categoryID, subCategoryID, err := fileUnder(ctx, repos.CategoryRepo(), row.Category, row.SubCategory)
		if err != nil {
			return err
		}
		product.CategoryID, product.SubCategoryID = &categoryID, &subCategoryID
		if err := repos.ProductRepo().Create(ctx, product); err != nil {
			return err
		}
		tx.Defer(product.GetDomainEvents()...)
		product.ClearDomainEvents()
	case err != nil:
		return err
	default:
		if err := propagateCategory(ctx, repos, product, row); err != nil {
			return err
		}
	}

	created, err := tx.CreateVariant(ctx, appinv.CreateVariantRequest{
		ProductID:       product.ID,
		Name:            row.VariationName,
		SKU:             row.SKU,
		Size:            row.Size,
		Color:           row.Color,
		Material:        row.Material,
		Weight:          row.Weight,
		VariantInitial:  row.VariantInitial,
		InitialQuantity: row.Quantity(),
		ReorderLevel:    row.ReorderLevel,
		UnitCost:        row.UnitCost,
		Notes:           row.Notes,
		Reason:          ImportReason,
		ReferenceType:   inventory.ReferenceTypeImportBatch,
		ReferenceID:     batchID,
		Attribution:     inventory.Attribution{Actor: s.actor(ctx)},
	})
	if err != nil {
		return err
	}

	logger.L(ctx).Debug("import row created variant",
		zap.Int("row", row.Line),
		zap.String("sku", created.Variant.SKU),
		zap.Int("quantity", created.Variant.QuantityInStock),
	)
	return nil
}

// updateFromRow applies the supplied columns to an existing variant. Attribute
// edits are saved first so the ledger write sees the final reorder level.
func (s *ImportService) updateFromRow(ctx context.Context, tx *appinv.LedgerTx, batchID string, row ImportRow, variantID uuid.UUID, matchedBySKU bool) error {
	repos := tx.Repos()
	v, err := repos.VariantRepo().FindByIDForUpdate(ctx, variantID)
	if err != nil {
		return err
	}
	product, err := repos.ProductRepo().FindByID(ctx, v.ProductID)
	if err != nil {
		return err
	}

	dirty := false
	name, attrs := row.mergeInto(v.Name, v.Attributes)
	if name != v.Name || attrs != v.Attributes {
		identityChanged := v.UpdateDetails(name, attrs)
		dirty = true
		if identityChanged && !matchedBySKU {
			sku, err := catalog.NewSKUGenerator(repos.VariantRepo()).GenerateWithPrefix(ctx, product.SKUPrefix(), v.Attributes, v.ID)
			if err != nil {
				return err
			}
			if err := v.AssignSKU(sku); err != nil {
				return err
			}
		}
	}
	if row.ReorderLevel != nil && *row.ReorderLevel != v.ReorderLevel {
		if err := v.SetReorderLevel(*row.ReorderLevel); err != nil {
			return err
		}
		dirty = true
	}
	if row.UnitCost.Valid && !(v.UnitCost.Valid && v.UnitCost.Decimal.Equal(row.UnitCost.Decimal)) {
		if err := v.SetUnitCost(row.UnitCost.Decimal); err != nil {
			return err
		}
		dirty = true
	}
	if row.Notes != "" && row.Notes != v.Notes {
		v.SetNotes(row.Notes)
		dirty = true
	}
	if dirty {
		if err := repos.VariantRepo().SaveWithLock(ctx, v); err != nil {
			return err
		}
	}

	if err := propagateCategory(ctx, repos, product, row); err != nil {
		return err
	}

	if !row.HasStock() {
		return nil
	}
	_, err = tx.AdjustStock(ctx, appinv.AdjustStockRequest{
		VariantID:     v.ID,
		Mode:          appinv.AdjustModeSet,
		Amount:        row.Quantity(),
		Reason:        ImportReason,
		ReferenceType: inventory.ReferenceTypeImportBatch,
		ReferenceID:   batchID,
		Attribution:   inventory.Attribution{Actor: s.actor(ctx)},
	})
	return err
}

// propagateCategory refiles the product when the row names a category.
// A sub-category alone is looked up under the product's current category.
func propagateCategory(ctx context.Context, repos appinv.TransactionalRepositories, product *catalog.Product, row ImportRow) error {
	if row.Category == "" && row.SubCategory == "" {
		return nil
	}
	categoryName := row.Category
	if categoryName == "" && product.CategoryID != nil {
		current, err := repos.CategoryRepo().FindCategoryByID(ctx, *product.CategoryID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if current != nil {
			categoryName = current.Name
		}
	}

	categoryID, subCategoryID, err := fileUnder(ctx, repos.CategoryRepo(), categoryName, row.SubCategory)
	if err != nil {
		return err
	}
	if product.InCategory(categoryID, subCategoryID) {
		return nil
	}
	product.SetCategory(&categoryID, &subCategoryID)
	return repos.ProductRepo().SaveWithLock(ctx, product)
}

func fileUnder(ctx context.Context, repo catalog.CategoryRepository, category, subCategory string) (uuid.UUID, uuid.UUID, error) {
	c, err := repo.FindOrCreateCategory(ctx, category)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	sc, err := repo.FindOrCreateSubCategory(ctx, c.ID, subCategory)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return c.ID, sc.ID, nil
}

func (s *ImportService) actor(ctx context.Context) string {
	if actor := logger.GetActor(ctx); actor != "" {
		return actor
	}
	return s.config.Actor
}

func (s *ImportService) recordMetrics(ctx context.Context, result *ImportResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordImportRows(ctx, "imported", result.Imported)
	s.metrics.RecordImportRows(ctx, "updated", result.Updated)
	s.metrics.RecordImportRows(ctx, "skipped", result.Skipped)
}

// rowError maps a reconciliation failure onto a row error
func rowError(row ImportRow, err error) csvimport.RowError {
	code := csvimport.ErrCodeReconciliation
	msg := err.Error()
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		msg = domainErr.Message
		switch {
		case shared.IsRetryable(err):
			code = csvimport.ErrCodeConcurrentUpdate
		case domainErr.Code == shared.CodeValidationFailed, domainErr.Code == shared.CodeInvalidInput:
			code = csvimport.ErrCodeValidation
		}
	}
	return csvimport.NewRowErrorWithValue(row.Line, "", code, msg, row.SKU)
}
