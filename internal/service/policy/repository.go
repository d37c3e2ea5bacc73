package policy

import (
	"context"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/service/distribution"
)

// ServiceRepository loads fully hydrated services: targets, allowed groups,
// rate limit and default sender included. Missing rows are reported as
// ErrServiceNotFound.
type ServiceRepository interface {
	Get(ctx context.Context, id string) (*domain.Service, error)
	GetByName(ctx context.Context, name string) (*domain.Service, error)
}

// Addresses is the subset of the address service the engine needs.
type Addresses interface {
	GetOrCreate(ctx context.Context, raw string) (*domain.EmailAddress, bool, error)
	GetMany(ctx context.Context, ids []string) ([]*domain.EmailAddress, error)
}

// Distributions expands distribution lists.
type Distributions interface {
	CollectInto(ctx context.Context, id string, visited distribution.Visited) (map[string]struct{}, error)
}
