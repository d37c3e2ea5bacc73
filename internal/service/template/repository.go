package template

import (
	"context"

	"github.com/ignite/impression/internal/domain"
)

// Repository defines the data access contract for templates.
type Repository interface {
	// Get returns ErrNotFound when the template does not exist.
	Get(ctx context.Context, id string) (*domain.Template, error)
}
