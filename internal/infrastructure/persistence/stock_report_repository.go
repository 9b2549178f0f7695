package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStockReportRepository implements StockReportRepository using GORM
type GormStockReportRepository struct {
	db *gorm.DB
}

// NewGormStockReportRepository creates a new GormStockReportRepository
func NewGormStockReportRepository(db *gorm.DB) *GormStockReportRepository {
	return &GormStockReportRepository{db: db}
}

// SumQuantityByCategory totals live stock per product category.
// Products without a category are reported under the default category name.
func (r *GormStockReportRepository) SumQuantityByCategory(ctx context.Context) ([]inventory.CategoryQuantity, error) {
	type categoryRow struct {
		CategoryID    uuid.NullUUID
		CategoryName  string
		VariantCount  int64
		TotalQuantity int64
	}

	var rows []categoryRow
	if err := r.db.WithContext(ctx).
		Table("product_variants pv").
		Select(`
			p.category_id AS category_id,
			COALESCE(c.name, ?) AS category_name,
			COUNT(pv.id) AS variant_count,
			COALESCE(SUM(pv.quantity_in_stock), 0) AS total_quantity
		`, catalog.DefaultCategoryName).
		Joins("JOIN products p ON p.id = pv.product_id").
		Joins("LEFT JOIN categories c ON c.id = p.category_id").
		Where("pv.deleted_at IS NULL AND p.deleted_at IS NULL").
		Group("p.category_id, c.name").
		Order("category_name ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]inventory.CategoryQuantity, len(rows))
	for i, row := range rows {
		result[i] = inventory.CategoryQuantity{
			CategoryID:    row.CategoryID.UUID,
			CategoryName:  row.CategoryName,
			VariantCount:  row.VariantCount,
			TotalQuantity: row.TotalQuantity,
		}
	}
	return result, nil
}

// SumStockOutByPlatform totals the stock-out breakdown per platform.
// Every platform is present in the result, zero when unused.
func (r *GormStockReportRepository) SumStockOutByPlatform(ctx context.Context, rng inventory.ReportRange) ([]inventory.PlatformTotal, error) {
	var sums struct {
		TikTok int64
		Shopee int64
		Bazaar int64
		Others int64
	}

	query := r.db.WithContext(ctx).
		Table("stock_out_items soi").
		Select(`
			COALESCE(SUM(soi.tiktok_quantity), 0) AS tik_tok,
			COALESCE(SUM(soi.shopee_quantity), 0) AS shopee,
			COALESCE(SUM(soi.bazaar_quantity), 0) AS bazaar,
			COALESCE(SUM(soi.others_quantity), 0) AS others
		`).
		Joins("JOIN stock_outs so ON so.id = soi.stock_out_id")
	query = applyRange(query, "so.created_at", rng)

	if err := query.Scan(&sums).Error; err != nil {
		return nil, err
	}

	return []inventory.PlatformTotal{
		{Platform: inventory.PlatformTikTok, Quantity: sums.TikTok},
		{Platform: inventory.PlatformShopee, Quantity: sums.Shopee},
		{Platform: inventory.PlatformBazaar, Quantity: sums.Bazaar},
		{Platform: inventory.PlatformOthers, Quantity: sums.Others},
	}, nil
}

// SumMovementsByDay groups movement changes by UTC calendar day, oldest first
func (r *GormStockReportRepository) SumMovementsByDay(ctx context.Context, rng inventory.ReportRange) ([]inventory.DailyMovement, error) {
	type dayRow struct {
		Day           string
		MovementCount int64
		QuantityIn    int64
		QuantityOut   int64
	}

	dayExpr := "TO_CHAR(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
	if r.db.Dialector.Name() == DriverSQLite {
		dayExpr = "strftime('%Y-%m-%d', created_at)"
	}

	query := r.db.WithContext(ctx).
		Table(movementsTable).
		Select(dayExpr + ` AS day,
			COUNT(*) AS movement_count,
			COALESCE(SUM(CASE WHEN quantity_change > 0 THEN quantity_change ELSE 0 END), 0) AS quantity_in,
			COALESCE(SUM(CASE WHEN quantity_change < 0 THEN -quantity_change ELSE 0 END), 0) AS quantity_out`).
		Group("day").
		Order("day ASC")
	query = applyRange(query, "created_at", rng)

	var rows []dayRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]inventory.DailyMovement, 0, len(rows))
	for _, row := range rows {
		day, err := time.Parse("2006-01-02", row.Day)
		if err != nil {
			return nil, fmt.Errorf("failed to parse movement day %q: %w", row.Day, err)
		}
		result = append(result, inventory.DailyMovement{
			Day:           day,
			MovementCount: row.MovementCount,
			QuantityIn:    row.QuantityIn,
			QuantityOut:   row.QuantityOut,
		})
	}
	return result, nil
}

func applyRange(query *gorm.DB, column string, rng inventory.ReportRange) *gorm.DB {
	if rng.From != nil {
		query = query.Where(column+" >= ?", *rng.From)
	}
	if rng.To != nil {
		query = query.Where(column+" < ?", *rng.To)
	}
	return query
}

// Ensure GormStockReportRepository implements StockReportRepository
var _ inventory.StockReportRepository = (*GormStockReportRepository)(nil)
