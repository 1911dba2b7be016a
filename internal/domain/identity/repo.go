package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/medai-lab/labdash/internal/platform/auth"
)

type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Account, int, error)
	ListByRole(ctx context.Context, role auth.Role) ([]*Account, error)
}
