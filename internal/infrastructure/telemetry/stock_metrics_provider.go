package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormStockLevelProvider counts variants by status straight from product_variants
type GormStockLevelProvider struct {
	db *gorm.DB
}

// NewGormStockLevelProvider creates a GormStockLevelProvider
func NewGormStockLevelProvider(db *gorm.DB) *GormStockLevelProvider {
	return &GormStockLevelProvider{db: db}
}

// CountByStatus returns live variant counts keyed by status
func (p *GormStockLevelProvider) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := p.db.WithContext(ctx).
		Table("product_variants").
		Select("status, COUNT(*) AS count").
		Where("deleted_at IS NULL").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
