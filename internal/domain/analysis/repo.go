package analysis

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Analysis) error
	GetByID(ctx context.Context, id uuid.UUID) (*Analysis, error)
	Update(ctx context.Context, a *Analysis) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Analysis, int, error)
	List(ctx context.Context, limit, offset int) ([]*Analysis, int, error)
}

// ReportChecker reports whether an active report exists for an analysis.
// Satisfied by the report repository; kept as a local interface so this
// package does not depend on the report package.
type ReportChecker interface {
	ExistsForAnalysis(ctx context.Context, analysisID uuid.UUID) (bool, error)
}
