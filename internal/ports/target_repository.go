package ports

import (
	"context"

	"github.com/sprookie/aigdb/internal/domain"
)

// TargetRepository persists the executable/core pairs a user has
// loaded, most recent first.
type TargetRepository interface {
	List(ctx context.Context) ([]domain.Target, error)
	Record(ctx context.Context, target domain.Target) error
}
