package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	// ListRecent returns the most recent events ordered by created_at
	// descending, id descending on ties.
	ListRecent(ctx context.Context, limit int) ([]*Event, error)
	List(ctx context.Context, limit, offset int) ([]*Event, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteMany(ctx context.Context, ids []uuid.UUID) error
	// DeleteOlderThan removes expired events and returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
