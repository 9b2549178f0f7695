package models

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel extends BaseModel with the version column used for
// optimistic locking and the deleted_at tombstone for soft delete.
type AggregateModel struct {
	BaseModel
	Version   int        `gorm:"not null;default:1"`
	DeletedAt *time.Time `gorm:"index"`
}

// FromDomainAggregate populates AggregateModel from a domain aggregate root
func (m *AggregateModel) FromDomainAggregate(a shared.BaseAggregateRoot, archive shared.Archivable) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
	m.DeletedAt = archive.DeletedAt
}

// ToDomainAggregate rebuilds the embedded domain parts
func (m *AggregateModel) ToDomainAggregate() (shared.BaseAggregateRoot, shared.Archivable) {
	return shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			Version:    m.Version,
		}, shared.Archivable{
			DeletedAt: m.DeletedAt,
		}
}
