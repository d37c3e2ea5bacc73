package distribution

import (
	"context"
	"fmt"
)

// Visited records distributions already expanded during one walk. It is
// shared by reference across the whole traversal.
type Visited map[string]struct{}

// Resolver walks distribution graphs.
type Resolver struct {
	repo Repository
}

// NewResolver creates a resolver backed by the given repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Collect returns the IDs of every address reachable from the distribution.
func (r *Resolver) Collect(ctx context.Context, id string) (map[string]struct{}, error) {
	return r.CollectInto(ctx, id, Visited{})
}

// CollectInto expands id, skipping any distribution already in visited.
// Callers expanding several roots pass the same visited set so shared
// subgraphs are walked once.
func (r *Resolver) CollectInto(ctx context.Context, id string, visited Visited) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if err := r.walk(ctx, id, visited, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) walk(ctx context.Context, id string, visited Visited, out map[string]struct{}) error {
	visited[id] = struct{}{}
	d, err := r.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load distribution %s: %w", id, err)
	}
	for _, a := range d.AddressIDs {
		out[a] = struct{}{}
	}
	for _, child := range d.ChildIDs {
		if _, seen := visited[child]; seen {
			continue
		}
		if err := r.walk(ctx, child, visited, out); err != nil {
			return err
		}
	}
	return nil
}
