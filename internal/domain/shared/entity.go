package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity is the identity and timestamps every stored record has
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity stamps a new identity with the current time
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Archivable marks a record as soft-deletable.
// An archived record keeps its rows and history and can be restored.
type Archivable struct {
	DeletedAt *time.Time
}

// IsArchived reports whether the record carries a tombstone
func (a *Archivable) IsArchived() bool {
	return a.DeletedAt != nil
}

// Archive sets the tombstone. Archiving twice is an invalid state transition.
func (a *Archivable) Archive(at time.Time) error {
	if a.DeletedAt != nil {
		return NewDomainError(CodeInvalidState, "record is already archived")
	}
	a.DeletedAt = &at
	return nil
}

// Restore clears the tombstone
func (a *Archivable) Restore() error {
	if a.DeletedAt == nil {
		return NewDomainError(CodeInvalidState, "record is not archived")
	}
	a.DeletedAt = nil
	return nil
}
