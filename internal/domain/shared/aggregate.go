package shared

// BaseAggregateRoot carries the identity, optimistic-lock version and pending
// events of an aggregate. Version starts at 1 and advances once per unit of
// work, however many mutations it contains.
type BaseAggregateRoot struct {
	BaseEntity
	Version int

	pending bool
	events  []DomainEvent
}

// NewBaseAggregateRoot returns a fresh aggregate at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

func (a *BaseAggregateRoot) GetVersion() int { return a.Version }

// BumpVersion advances the version unless it already moved since the last write
func (a *BaseAggregateRoot) BumpVersion() {
	if !a.pending {
		a.Version++
		a.pending = true
	}
}

// PersistedVersion is the version the stored row carries, which is what an
// update must match
func (a *BaseAggregateRoot) PersistedVersion() int {
	if a.pending {
		return a.Version - 1
	}
	return a.Version
}

// MarkPersisted is called by repositories after a successful write
func (a *BaseAggregateRoot) MarkPersisted() { a.pending = false }

// AddDomainEvent queues an event for publication after commit
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent { return a.events }

func (a *BaseAggregateRoot) ClearDomainEvents() { a.events = nil }
