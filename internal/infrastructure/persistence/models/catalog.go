package models

import (
	"time"

	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CategoryModel is the persistence model for the Category domain entity.
type CategoryModel struct {
	BaseModel
	Name string `gorm:"type:varchar(100);not null;uniqueIndex:idx_categories_name"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string {
	return "categories"
}

// ToDomain converts the persistence model to a domain Category entity.
func (m *CategoryModel) ToDomain() *catalog.Category {
	return &catalog.Category{BaseEntity: m.BaseModel.ToDomain(), Name: m.Name}
}

// CategoryModelFromDomain creates a new persistence model from a domain Category entity.
func CategoryModelFromDomain(c *catalog.Category) *CategoryModel {
	m := &CategoryModel{Name: c.Name}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// SubCategoryModel is the persistence model for the SubCategory domain entity.
type SubCategoryModel struct {
	BaseModel
	CategoryID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_sub_categories_parent_name,priority:1"`
	Name       string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_sub_categories_parent_name,priority:2"`
}

// TableName returns the table name for GORM
func (SubCategoryModel) TableName() string {
	return "sub_categories"
}

// ToDomain converts the persistence model to a domain SubCategory entity.
func (m *SubCategoryModel) ToDomain() *catalog.SubCategory {
	return &catalog.SubCategory{
		BaseEntity: m.BaseModel.ToDomain(),
		CategoryID: m.CategoryID,
		Name:       m.Name,
	}
}

// SubCategoryModelFromDomain creates a new persistence model from a domain SubCategory entity.
func SubCategoryModelFromDomain(c *catalog.SubCategory) *SubCategoryModel {
	m := &SubCategoryModel{CategoryID: c.CategoryID, Name: c.Name}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// ProductModel is the persistence model for the Product domain entity.
type ProductModel struct {
	AggregateModel
	Name          string                `gorm:"type:varchar(200);not null;index"`
	Description   string                `gorm:"type:text"`
	CategoryID    *uuid.UUID            `gorm:"type:uuid;index"`
	SubCategoryID *uuid.UUID            `gorm:"type:uuid;index"`
	BasePrefix    string                `gorm:"type:varchar(32);not null"`
	Status        catalog.ProductStatus `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	root, archive := m.ToDomainAggregate()
	return &catalog.Product{
		BaseAggregateRoot: root,
		Archivable:        archive,
		Name:              m.Name,
		Description:       m.Description,
		CategoryID:        m.CategoryID,
		SubCategoryID:     m.SubCategoryID,
		BasePrefix:        m.BasePrefix,
		Status:            m.Status,
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainAggregate(p.BaseAggregateRoot, p.Archivable)
	m.Name = p.Name
	m.Description = p.Description
	m.CategoryID = p.CategoryID
	m.SubCategoryID = p.SubCategoryID
	m.BasePrefix = p.BasePrefix
	m.Status = p.Status
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

// ProductVariantModel is the persistence model for the ProductVariant aggregate.
// The SKU is unique across live and archived rows.
type ProductVariantModel struct {
	AggregateModel
	ProductID       uuid.UUID           `gorm:"type:uuid;not null;index"`
	SKU             string              `gorm:"column:sku;type:varchar(64);not null;uniqueIndex:idx_product_variants_sku"`
	Name            string              `gorm:"type:varchar(200);not null;default:''"`
	Size            string              `gorm:"type:varchar(50)"`
	Color           string              `gorm:"type:varchar(50)"`
	Material        string              `gorm:"type:varchar(50)"`
	Weight          string              `gorm:"type:varchar(50)"`
	VariantInitial  string              `gorm:"type:varchar(10)"`
	QuantityInStock int                 `gorm:"not null;default:0"`
	ReorderLevel    int                 `gorm:"not null;default:10"`
	Status          catalog.StockStatus `gorm:"type:varchar(20);not null;index"`
	IsActive        bool                `gorm:"not null;default:true"`
	LastRestockedAt *time.Time
	Notes           string              `gorm:"type:text"`
	UnitCost        decimal.NullDecimal `gorm:"type:decimal(18,4)"`
}

// TableName returns the table name for GORM
func (ProductVariantModel) TableName() string {
	return "product_variants"
}

// ToDomain converts the persistence model to a domain ProductVariant.
func (m *ProductVariantModel) ToDomain() *catalog.ProductVariant {
	root, archive := m.ToDomainAggregate()
	return &catalog.ProductVariant{
		BaseAggregateRoot: root,
		Archivable:        archive,
		ProductID:         m.ProductID,
		SKU:               m.SKU,
		Name:              m.Name,
		Attributes: catalog.VariantAttributes{
			Size:           m.Size,
			Color:          m.Color,
			Material:       m.Material,
			Weight:         m.Weight,
			VariantInitial: m.VariantInitial,
		},
		QuantityInStock: m.QuantityInStock,
		ReorderLevel:    m.ReorderLevel,
		Status:          m.Status,
		IsActive:        m.IsActive,
		LastRestockedAt: m.LastRestockedAt,
		Notes:           m.Notes,
		UnitCost:        m.UnitCost,
	}
}

// FromDomain populates the persistence model from a domain ProductVariant.
func (m *ProductVariantModel) FromDomain(v *catalog.ProductVariant) {
	m.FromDomainAggregate(v.BaseAggregateRoot, v.Archivable)
	m.ProductID = v.ProductID
	m.SKU = v.SKU
	m.Name = v.Name
	m.Size = v.Attributes.Size
	m.Color = v.Attributes.Color
	m.Material = v.Attributes.Material
	m.Weight = v.Attributes.Weight
	m.VariantInitial = v.Attributes.VariantInitial
	m.QuantityInStock = v.QuantityInStock
	m.ReorderLevel = v.ReorderLevel
	m.Status = v.Status
	m.IsActive = v.IsActive
	m.LastRestockedAt = v.LastRestockedAt
	m.Notes = v.Notes
	m.UnitCost = v.UnitCost
}

// ProductVariantModelFromDomain creates a new persistence model from a domain ProductVariant.
func ProductVariantModelFromDomain(v *catalog.ProductVariant) *ProductVariantModel {
	m := &ProductVariantModel{}
	m.FromDomain(v)
	return m
}

