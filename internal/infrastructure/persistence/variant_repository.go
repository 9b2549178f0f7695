package persistence

import (
	"context"
	"strings"

	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const variantsTable = "product_variants"

// GormVariantRepository implements VariantRepository using GORM
type GormVariantRepository struct {
	db *gorm.DB
}

// NewGormVariantRepository creates a new GormVariantRepository
func NewGormVariantRepository(db *gorm.DB) *GormVariantRepository {
	return &GormVariantRepository{db: db}
}

// SKUsWithPrefix returns every SKU starting with prefix, archived rows included,
// so a retired SKU is never handed out again.
func (r *GormVariantRepository) SKUsWithPrefix(ctx context.Context, prefix string, excludeID uuid.UUID) ([]string, error) {
	var skus []string
	query := r.db.WithContext(ctx).Model(&models.ProductVariantModel{}).
		Where(`sku LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Pluck("sku", &skus).Error; err != nil {
		return nil, err
	}
	return skus, nil
}

// SKUExists checks the SKU against all rows except excludeID
func (r *GormVariantRepository) SKUExists(ctx context.Context, sku string, excludeID uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.ProductVariantModel{}).Where("sku = ?", sku)
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByID finds a live variant by its ID
func (r *GormVariantRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.ProductVariant, error) {
	return r.first(r.live(ctx).Where("id = ?", id))
}

// FindByIDForUpdate reads a live variant and locks its row until the transaction ends.
// sqlite drops the locking clause; its single connection serializes writers instead.
func (r *GormVariantRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*catalog.ProductVariant, error) {
	return r.first(r.live(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

// FindByIDIncludingArchived finds a variant whether or not it is archived
func (r *GormVariantRepository) FindByIDIncludingArchived(ctx context.Context, id uuid.UUID) (*catalog.ProductVariant, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindBySKU finds a live variant by exact SKU
func (r *GormVariantRepository) FindBySKU(ctx context.Context, sku string) (*catalog.ProductVariant, error) {
	return r.first(r.live(ctx).Where("sku = ?", strings.TrimSpace(sku)))
}

// FindByProductAndName finds a live variant of the product by variation name, ignoring case
func (r *GormVariantRepository) FindByProductAndName(ctx context.Context, productID uuid.UUID, name string) (*catalog.ProductVariant, error) {
	return r.first(r.live(ctx).
		Where("product_id = ? AND LOWER(name) = ?", productID, strings.ToLower(strings.TrimSpace(name))).
		Order("created_at ASC"))
}

// FindFirstByProduct returns the oldest live variant of the product
func (r *GormVariantRepository) FindFirstByProduct(ctx context.Context, productID uuid.UUID) (*catalog.ProductVariant, error) {
	return r.first(r.live(ctx).Where("product_id = ?", productID).Order("created_at ASC"))
}

// FindByProduct returns the live variants of a product, oldest first
func (r *GormVariantRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]catalog.ProductVariant, error) {
	var rows []models.ProductVariantModel
	if err := r.live(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toVariants(rows), nil
}

// FindAll returns a page of variants and the total count
func (r *GormVariantRepository) FindAll(ctx context.Context, filter catalog.VariantFilter) ([]catalog.ProductVariant, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ProductVariantModel{}), filter)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ProductVariantModel
	if err := applyPaging(query.Session(&gorm.Session{}), filter.Filter, variantsTable, VariantSortFields, "created_at").
		Select(variantsTable + ".*").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toVariants(rows), total, nil
}

// Create inserts a variant. A taken SKU surfaces as ALREADY_EXISTS.
func (r *GormVariantRepository) Create(ctx context.Context, variant *catalog.ProductVariant) error {
	model := models.ProductVariantModelFromDomain(variant)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err, "SKU "+variant.SKU)
	}
	variant.MarkPersisted()
	return nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormVariantRepository) SaveWithLock(ctx context.Context, variant *catalog.ProductVariant) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductVariantModel{}).
		Where("id = ? AND version = ?", variant.ID, variant.PersistedVersion()).
		Updates(map[string]any{
			"product_id":        variant.ProductID,
			"sku":               variant.SKU,
			"name":              variant.Name,
			"size":              variant.Attributes.Size,
			"color":             variant.Attributes.Color,
			"material":          variant.Attributes.Material,
			"weight":            variant.Attributes.Weight,
			"variant_initial":   variant.Attributes.VariantInitial,
			"quantity_in_stock": variant.QuantityInStock,
			"reorder_level":     variant.ReorderLevel,
			"status":            variant.Status,
			"is_active":         variant.IsActive,
			"last_restocked_at": variant.LastRestockedAt,
			"notes":             variant.Notes,
			"unit_cost":         variant.UnitCost,
			"deleted_at":        variant.DeletedAt,
			"version":           variant.Version,
			"updated_at":        variant.UpdatedAt,
		})

	if result.Error != nil {
		return translateError(result.Error, "SKU "+variant.SKU)
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "Variant was modified by another transaction")
	}
	variant.MarkPersisted()
	return nil
}

// CountByStockStatus counts live variants per stock status
func (r *GormVariantRepository) CountByStockStatus(ctx context.Context) (map[catalog.StockStatus]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	if err := r.live(ctx).
		Model(&models.ProductVariantModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := map[catalog.StockStatus]int64{
		catalog.StockStatusInStock:    0,
		catalog.StockStatusLowStock:   0,
		catalog.StockStatusOutOfStock: 0,
	}
	for _, row := range rows {
		counts[catalog.StockStatus(row.Status)] = row.Count
	}
	return counts, nil
}

func (r *GormVariantRepository) live(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where(notArchived(variantsTable))
}

func (r *GormVariantRepository) first(query *gorm.DB) (*catalog.ProductVariant, error) {
	var model models.ProductVariantModel
	if err := query.First(&model).Error; err != nil {
		return nil, translateError(err, "Variant")
	}
	return model.ToDomain(), nil
}

func (r *GormVariantRepository) applyFilter(query *gorm.DB, filter catalog.VariantFilter) *gorm.DB {
	if !filter.IncludeArchived {
		query = query.Where(notArchived(variantsTable))
	}
	if filter.ProductID != nil {
		query = query.Where(variantsTable+".product_id = ?", *filter.ProductID)
	}
	if filter.StockStatus != nil {
		query = query.Where(variantsTable+".status = ?", *filter.StockStatus)
	}
	if filter.CategoryID != nil || filter.SubCategoryID != nil {
		query = query.Joins("JOIN products ON products.id = " + variantsTable + ".product_id")
		if filter.CategoryID != nil {
			query = query.Where("products.category_id = ?", *filter.CategoryID)
		}
		if filter.SubCategoryID != nil {
			query = query.Where("products.sub_category_id = ?", *filter.SubCategoryID)
		}
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("(LOWER("+variantsTable+".sku) LIKE ? OR LOWER("+variantsTable+".name) LIKE ?)", like, like)
	}
	return query
}

func toVariants(rows []models.ProductVariantModel) []catalog.ProductVariant {
	variants := make([]catalog.ProductVariant, len(rows))
	for i := range rows {
		variants[i] = *rows[i].ToDomain()
	}
	return variants
}

// escapeLike escapes LIKE wildcards in a literal prefix
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Ensure GormVariantRepository implements VariantRepository
var _ catalog.VariantRepository = (*GormVariantRepository)(nil)
