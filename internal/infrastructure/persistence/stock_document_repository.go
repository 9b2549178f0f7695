package persistence

import (
	"context"
	"strconv"
	"strings"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStockDocumentRepository implements StockDocumentRepository using GORM
type GormStockDocumentRepository struct {
	db *gorm.DB
}

// NewGormStockDocumentRepository creates a new GormStockDocumentRepository
func NewGormStockDocumentRepository(db *gorm.DB) *GormStockDocumentRepository {
	return &GormStockDocumentRepository{db: db}
}

// CreateStockIn inserts the header and its items
func (r *GormStockDocumentRepository) CreateStockIn(ctx context.Context, doc *inventory.StockIn) error {
	if err := r.db.WithContext(ctx).Create(models.StockInModelFromDomain(doc)).Error; err != nil {
		return translateError(err, "Stock-in "+doc.Number)
	}
	return nil
}

// CreateStockOut inserts the header and its items
func (r *GormStockDocumentRepository) CreateStockOut(ctx context.Context, doc *inventory.StockOut) error {
	if err := r.db.WithContext(ctx).Create(models.StockOutModelFromDomain(doc)).Error; err != nil {
		return translateError(err, "Stock-out "+doc.Number)
	}
	return nil
}

// FindStockInByID loads a stock-in with its items
func (r *GormStockDocumentRepository) FindStockInByID(ctx context.Context, id uuid.UUID) (*inventory.StockIn, error) {
	var model models.StockInModel
	if err := r.db.WithContext(ctx).Preload("Items").First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "Stock-in")
	}
	return model.ToDomain(), nil
}

// FindStockOutByID loads a stock-out with its items
func (r *GormStockDocumentRepository) FindStockOutByID(ctx context.Context, id uuid.UUID) (*inventory.StockOut, error) {
	var model models.StockOutModel
	if err := r.db.WithContext(ctx).Preload("Items").First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "Stock-out")
	}
	return model.ToDomain(), nil
}

// NextDocumentNumber returns stem + the next 4-digit sequence.
// The stem's prefix selects the document table (SI- or SO-).
func (r *GormStockDocumentRepository) NextDocumentNumber(ctx context.Context, stem string) (string, error) {
	var model any = &models.StockInModel{}
	if strings.HasPrefix(stem, inventory.StockOutNumberPrefix+"-") {
		model = &models.StockOutModel{}
	}

	var numbers []string
	if err := r.db.WithContext(ctx).Model(model).
		Where(`number LIKE ? ESCAPE '\'`, escapeLike(stem)+"%").
		Order("number DESC").
		Limit(1).
		Pluck("number", &numbers).Error; err != nil {
		return "", err
	}

	seq := 1
	if len(numbers) > 0 {
		if last, ok := parseSequence(numbers[0], stem); ok {
			seq = last + 1
		}
	}
	return inventory.FormatDocumentNumber(stem, seq), nil
}

func parseSequence(number, stem string) (int, bool) {
	rest, ok := strings.CutPrefix(number, stem)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Ensure GormStockDocumentRepository implements StockDocumentRepository
var _ inventory.StockDocumentRepository = (*GormStockDocumentRepository)(nil)
