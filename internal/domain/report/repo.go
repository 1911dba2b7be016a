package report

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a report listing. Zero values mean no constraint.
type ListFilter struct {
	State            State
	OfficerEmail     string
	PathologistEmail string
	SubmittedBy      uuid.UUID
}

type Repository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	GetByAnalysis(ctx context.Context, analysisID uuid.UUID) (*Report, error)
	Update(ctx context.Context, r *Report) error
	ExistsForAnalysis(ctx context.Context, analysisID uuid.UUID) (bool, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Report, int, error)
}
