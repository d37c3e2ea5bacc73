package distribution

import (
	"context"

	"github.com/ignite/impression/internal/domain"
)

// Repository defines the data access contract for distributions.
type Repository interface {
	// Get returns the distribution with its direct members and child IDs, or
	// ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Distribution, error)
}
