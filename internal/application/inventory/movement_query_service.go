package inventory

import (
	"context"

	"github.com/erp/stockledger/internal/application/validation"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// MovementQueryService reads the movement audit trail.
// Movements are never edited or removed; corrections are new ledger writes.
type MovementQueryService struct {
	repo inventory.MovementRepository
}

// NewMovementQueryService creates a new MovementQueryService
func NewMovementQueryService(repo inventory.MovementRepository) *MovementQueryService {
	return &MovementQueryService{repo: repo}
}

// ListMovements returns a page of movements, newest first by default
func (s *MovementQueryService) ListMovements(ctx context.Context, filter MovementListFilter) (*shared.Paginated[MovementResponse], error) {
	if err := validation.Struct(filter, shared.CodeInvalidInput); err != nil {
		return nil, err
	}

	f, err := toMovementFilter(filter)
	if err != nil {
		return nil, err
	}
	movements, total, err := s.repo.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}

	page := shared.NewPaginated(ToMovementResponses(movements), total, f.Page, f.PageSize)
	return &page, nil
}

// GetMovement returns one movement
func (s *MovementQueryService) GetMovement(ctx context.Context, id uuid.UUID) (*MovementResponse, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToMovementResponse(m)
	return &resp, nil
}

// UpdateMovement always fails: movements are immutable
func (s *MovementQueryService) UpdateMovement(_ context.Context, _ uuid.UUID) error {
	return shared.NewDomainError(shared.CodeImmutableRecord, "Stock movements cannot be modified")
}

// DeleteMovement always fails: movements are immutable
func (s *MovementQueryService) DeleteMovement(_ context.Context, _ uuid.UUID) error {
	return shared.NewDomainError(shared.CodeImmutableRecord, "Stock movements cannot be deleted")
}

func toMovementFilter(in MovementListFilter) (inventory.MovementFilter, error) {
	base := shared.DefaultFilter()
	if in.Page > 0 {
		base.Page = in.Page
	}
	if in.PageSize > 0 {
		base.PageSize = in.PageSize
	}
	base.OrderBy = in.OrderBy
	base.OrderDir = in.OrderDir

	f := inventory.MovementFilter{
		Filter:        base,
		VariantID:     in.VariantID,
		Actor:         in.Actor,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		From:          in.From,
		To:            in.To,
	}
	for _, t := range in.Types {
		mt, err := inventory.ParseMovementType(t)
		if err != nil {
			return f, err
		}
		f.Types = append(f.Types, mt)
	}
	if in.Platform != "" {
		p, err := inventory.ParsePlatform(in.Platform)
		if err != nil {
			return f, err
		}
		f.Platform = &p
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, shared.NewDomainError(shared.CodeInvalidInput, "'to' must not be before 'from'")
	}
	return f, nil
}
