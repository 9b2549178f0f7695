package persistence

import (
	"context"
	"strings"

	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCategoryRepository implements CategoryRepository using GORM
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewGormCategoryRepository creates a new GormCategoryRepository
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

// FindCategoryByID finds a category by its ID
func (r *GormCategoryRepository) FindCategoryByID(ctx context.Context, id uuid.UUID) (*catalog.Category, error) {
	var model models.CategoryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "Category")
	}
	return model.ToDomain(), nil
}

// FindSubCategoryByID finds a sub-category by its ID
func (r *GormCategoryRepository) FindSubCategoryByID(ctx context.Context, id uuid.UUID) (*catalog.SubCategory, error) {
	var model models.SubCategoryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "Sub-category")
	}
	return model.ToDomain(), nil
}

// FindOrCreateCategory returns the category with the given name, creating it when missing.
// A concurrent insert of the same name is absorbed by ON CONFLICT DO NOTHING and a re-read.
func (r *GormCategoryRepository) FindOrCreateCategory(ctx context.Context, name string) (*catalog.Category, error) {
	name = catalog.NormalizeCategoryName(name, catalog.DefaultCategoryName)
	if existing, err := r.findCategoryByName(ctx, name); err == nil {
		return existing, nil
	} else if !isNotFound(err) {
		return nil, err
	}

	category, err := catalog.NewCategory(name)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.CategoryModelFromDomain(category)).Error; err != nil {
		return nil, translateError(err, "Category")
	}
	return r.findCategoryByName(ctx, name)
}

// FindOrCreateSubCategory returns the named sub-category under categoryID, creating it when missing
func (r *GormCategoryRepository) FindOrCreateSubCategory(ctx context.Context, categoryID uuid.UUID, name string) (*catalog.SubCategory, error) {
	name = catalog.NormalizeCategoryName(name, catalog.DefaultSubCategoryName)
	if existing, err := r.findSubCategoryByName(ctx, categoryID, name); err == nil {
		return existing, nil
	} else if !isNotFound(err) {
		return nil, err
	}

	sub, err := catalog.NewSubCategory(categoryID, name)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.SubCategoryModelFromDomain(sub)).Error; err != nil {
		return nil, translateError(err, "Sub-category")
	}
	return r.findSubCategoryByName(ctx, categoryID, name)
}

// ListCategories returns all categories ordered by name
func (r *GormCategoryRepository) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	var rows []models.CategoryModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	categories := make([]catalog.Category, len(rows))
	for i := range rows {
		categories[i] = *rows[i].ToDomain()
	}
	return categories, nil
}

func (r *GormCategoryRepository) findCategoryByName(ctx context.Context, name string) (*catalog.Category, error) {
	var model models.CategoryModel
	if err := r.db.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(name)).
		First(&model).Error; err != nil {
		return nil, translateError(err, "Category")
	}
	return model.ToDomain(), nil
}

func (r *GormCategoryRepository) findSubCategoryByName(ctx context.Context, categoryID uuid.UUID, name string) (*catalog.SubCategory, error) {
	var model models.SubCategoryModel
	if err := r.db.WithContext(ctx).
		Where("category_id = ? AND LOWER(name) = ?", categoryID, strings.ToLower(name)).
		First(&model).Error; err != nil {
		return nil, translateError(err, "Sub-category")
	}
	return model.ToDomain(), nil
}

// Ensure GormCategoryRepository implements CategoryRepository
var _ catalog.CategoryRepository = (*GormCategoryRepository)(nil)
