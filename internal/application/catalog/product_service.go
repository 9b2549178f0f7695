// Package catalog holds catalog maintenance: products, their category filing,
// lifecycle and soft delete, plus variant edits that never touch quantity.
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

// ProductService handles product-related business operations
type ProductService struct {
	ledger   *appinv.LedgerService
	products catalog.ProductRepository
	variants catalog.VariantRepository
	now      func() time.Time
}

// NewProductService creates a new ProductService.
// Writes go through the ledger's transaction; the repositories serve reads.
func NewProductService(ledger *appinv.LedgerService, products catalog.ProductRepository, variants catalog.VariantRepository) *ProductService {
	return &ProductService{
		ledger:   ledger,
		products: products,
		variants: variants,
		now:      time.Now,
	}
}

// CreateProduct creates a product, finding or creating its categories
func (s *ProductService) CreateProduct(ctx context.Context, req CreateProductRequest) (*ProductResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "create_product")
	defer span.End()

	if err := validation.Struct(req, shared.CodeInvalidInput); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var product *catalog.Product
	err := s.ledger.InTransaction(ctx, "create_product", func(ctx context.Context, tx *appinv.LedgerTx) error {
		repos := tx.Repos()
		if existing, err := repos.ProductRepo().FindByName(ctx, req.Name); err == nil {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Product "+existing.Name+" already exists")
		} else if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		p, err := catalog.NewProduct(req.Name)
		if err != nil {
			return err
		}
		p.Description = req.Description
		categoryID, subCategoryID, err := fileUnder(ctx, repos.CategoryRepo(), req.Category, req.SubCategory)
		if err != nil {
			return err
		}
		p.CategoryID, p.SubCategoryID = &categoryID, &subCategoryID

		if err := repos.ProductRepo().Create(ctx, p); err != nil {
			return err
		}
		tx.Defer(p.GetDomainEvents()...)
		product = p
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	product.ClearDomainEvents()

	logger.L(ctx).Info("product created",
		zap.String("product_id", product.ID.String()),
		zap.String("name", product.Name),
	)
	telemetry.SetAttributes(span, telemetry.SpanAttrProductID, product.ID.String())
	telemetry.SetOK(span)

	resp := ToProductResponse(product)
	return &resp, nil
}

// RenameProduct changes the name. Variant SKUs are left alone since the
// product keeps its base prefix.
func (s *ProductService) RenameProduct(ctx context.Context, id uuid.UUID, name string) (*ProductResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "rename_product")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrProductID, id.String())

	var product *catalog.Product
	var oldName string
	err := s.ledger.InTransaction(ctx, "rename_product", func(ctx context.Context, tx *appinv.LedgerTx) error {
		repos := tx.Repos()
		p, err := repos.ProductRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		oldName = p.Name
		if err := p.Rename(name); err != nil {
			return err
		}
		if err := repos.ProductRepo().SaveWithLock(ctx, p); err != nil {
			return err
		}
		product = p
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.L(ctx).Info("product renamed",
		zap.String("product_id", product.ID.String()),
		zap.String("old_name", oldName),
		zap.String("name", product.Name),
	)
	telemetry.SetOK(span)
	resp := ToProductResponse(product)
	return &resp, nil
}

// SetCategory refiles the product, creating the categories when missing
func (s *ProductService) SetCategory(ctx context.Context, id uuid.UUID, category, subCategory string) (*ProductResponse, error) {
	var product *catalog.Product
	err := s.ledger.InTransaction(ctx, "set_product_category", func(ctx context.Context, tx *appinv.LedgerTx) error {
		repos := tx.Repos()
		p, err := repos.ProductRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		categoryID, subCategoryID, err := fileUnder(ctx, repos.CategoryRepo(), category, subCategory)
		if err != nil {
			return err
		}
		if !p.InCategory(categoryID, subCategoryID) {
			p.SetCategory(&categoryID, &subCategoryID)
			if err := repos.ProductRepo().SaveWithLock(ctx, p); err != nil {
				return err
			}
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// ChangeStatus applies a lifecycle transition. Discontinued is final.
func (s *ProductService) ChangeStatus(ctx context.Context, id uuid.UUID, action ProductAction) (*ProductResponse, error) {
	var product *catalog.Product
	err := s.ledger.InTransaction(ctx, "change_product_status", func(ctx context.Context, tx *appinv.LedgerTx) error {
		p, err := tx.Repos().ProductRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		switch action {
		case ProductActionActivate:
			err = p.Activate()
		case ProductActionDeactivate:
			err = p.Deactivate()
		case ProductActionDiscontinue:
			err = p.Discontinue()
		default:
			err = shared.NewDomainError(shared.CodeInvalidInput, "Unknown product action "+string(action))
		}
		if err != nil {
			return err
		}
		if err := tx.Repos().ProductRepo().SaveWithLock(ctx, p); err != nil {
			return err
		}
		tx.Defer(p.GetDomainEvents()...)
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	product.ClearDomainEvents()

	logger.L(ctx).Info("product status changed",
		zap.String("product_id", id.String()),
		zap.String("status", string(product.Status)),
	)
	resp := ToProductResponse(product)
	return &resp, nil
}

// ArchiveProduct soft-deletes the product and its live variants with one
// timestamp. Movements and documents stay untouched.
func (s *ProductService) ArchiveProduct(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "archive_product")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrProductID, id.String())

	var archived int
	err := s.ledger.InTransaction(ctx, "archive_product", func(ctx context.Context, tx *appinv.LedgerTx) error {
		repos := tx.Repos()
		p, err := repos.ProductRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		at := s.now().UTC().Truncate(time.Microsecond)
		if err := p.ArchiveAt(at); err != nil {
			return err
		}
		if err := repos.ProductRepo().SaveWithLock(ctx, p); err != nil {
			return err
		}

		variants, err := repos.VariantRepo().FindByProduct(ctx, p.ID)
		if err != nil {
			return err
		}
		archived = 0
		for i := range variants {
			if err := variants[i].ArchiveAt(at); err != nil {
				return err
			}
			if err := repos.VariantRepo().SaveWithLock(ctx, &variants[i]); err != nil {
				return err
			}
			archived++
		}
		tx.Defer(p.GetDomainEvents()...)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	logger.L(ctx).Info("product archived",
		zap.String("product_id", id.String()),
		zap.Int("variants_archived", archived),
	)
	telemetry.SetOK(span)
	return nil
}

// RestoreProduct brings back an archived product together with the variants
// that were archived alongside it. Variants archived on their own stay archived.
func (s *ProductService) RestoreProduct(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	var product *catalog.Product
	var restored int
	err := s.ledger.InTransaction(ctx, "restore_product", func(ctx context.Context, tx *appinv.LedgerTx) error {
		repos := tx.Repos()
		p, err := repos.ProductRepo().FindByIDIncludingArchived(ctx, id)
		if err != nil {
			return err
		}
		if !p.IsArchived() {
			return shared.NewDomainError(shared.CodeInvalidState, "Product is not archived")
		}
		archivedAt := *p.DeletedAt

		siblings, err := archivedVariants(ctx, repos.VariantRepo(), p.ID)
		if err != nil {
			return err
		}
		if err := p.Unarchive(); err != nil {
			return err
		}
		if err := repos.ProductRepo().SaveWithLock(ctx, p); err != nil {
			return err
		}

		restored = 0
		for i := range siblings {
			v := &siblings[i]
			if !v.DeletedAt.Equal(archivedAt) {
				continue
			}
			if err := v.Unarchive(); err != nil {
				return err
			}
			if err := repos.VariantRepo().SaveWithLock(ctx, v); err != nil {
				return err
			}
			restored++
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.L(ctx).Info("product restored",
		zap.String("product_id", id.String()),
		zap.Int("variants_restored", restored),
	)
	resp := ToProductResponse(product)
	return &resp, nil
}

// GetProduct returns a live product
func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(p)
	return &resp, nil
}

// ListProducts returns a page of products
func (s *ProductService) ListProducts(ctx context.Context, filter ProductListFilter) (*shared.Paginated[ProductResponse], error) {
	if err := validation.Struct(filter, shared.CodeInvalidInput); err != nil {
		return nil, err
	}

	f := catalog.ProductFilter{
		Filter:          pageFilter(filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir, filter.Search),
		CategoryID:      filter.CategoryID,
		IncludeArchived: filter.IncludeArchived,
	}
	if filter.Status != "" {
		status := catalog.ProductStatus(filter.Status)
		f.Status = &status
	}

	products, total, err := s.products.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	items := make([]ProductResponse, len(products))
	for i := range products {
		items[i] = ToProductResponse(&products[i])
	}
	page := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &page, nil
}

// fileUnder resolves a category pair by name, creating missing entries
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

// archivedVariants pages through every archived variant of a product
func archivedVariants(ctx context.Context, repo catalog.VariantRepository, productID uuid.UUID) ([]catalog.ProductVariant, error) {
	var out []catalog.ProductVariant
	filter := catalog.VariantFilter{
		Filter:          pageFilter(1, 100, "created_at", "asc", ""),
		ProductID:       &productID,
		IncludeArchived: true,
	}
	for {
		rows, total, err := repo.FindAll(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, v := range rows {
			if v.IsArchived() {
				out = append(out, v)
			}
		}
		if int64(filter.Page*filter.PageSize) >= total || len(rows) == 0 {
			return out, nil
		}
		filter.Page++
	}
}

func pageFilter(page, pageSize int, orderBy, orderDir, search string) shared.Filter {
	f := shared.DefaultFilter()
	if page > 0 {
		f.Page = page
	}
	if pageSize > 0 {
		f.PageSize = pageSize
	}
	if orderBy != "" {
		f.OrderBy = orderBy
	}
	if orderDir != "" {
		f.OrderDir = orderDir
	}
	f.Search = search
	return f
}
