package catalog

import (
	"strings"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Names used when an imported or created product has no category
const (
	DefaultCategoryName    = "Uncategorized"
	DefaultSubCategoryName = "General"
)

// Category is a top-level product grouping. Names are unique.
type Category struct {
	shared.BaseEntity
	Name string
}

// SubCategory belongs to one Category. Names are unique per parent.
type SubCategory struct {
	shared.BaseEntity
	CategoryID uuid.UUID
	Name       string
}

// NewCategory creates a category, defaulting an empty name
func NewCategory(name string) (*Category, error) {
	name = NormalizeCategoryName(name, DefaultCategoryName)
	if err := validateCategoryName(name); err != nil {
		return nil, err
	}
	return &Category{BaseEntity: shared.NewBaseEntity(), Name: name}, nil
}

// NewSubCategory creates a sub-category under categoryID, defaulting an empty name
func NewSubCategory(categoryID uuid.UUID, name string) (*SubCategory, error) {
	if categoryID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Sub-category requires a parent category")
	}
	name = NormalizeCategoryName(name, DefaultSubCategoryName)
	if err := validateCategoryName(name); err != nil {
		return nil, err
	}
	return &SubCategory{BaseEntity: shared.NewBaseEntity(), CategoryID: categoryID, Name: name}, nil
}

// NormalizeCategoryName trims whitespace and substitutes fallback for blank names
func NormalizeCategoryName(name, fallback string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return fallback
	}
	return name
}

func validateCategoryName(name string) error {
	if len(name) > 100 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Category name cannot exceed 100 characters")
	}
	return nil
}
