package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/service/distribution"
)

// DistributionRepo implements distribution.Repository against PostgreSQL.
type DistributionRepo struct{ db *sql.DB }

// NewDistributionRepo creates a Postgres-backed distribution repository.
func NewDistributionRepo(db *sql.DB) *DistributionRepo { return &DistributionRepo{db: db} }

func (r *DistributionRepo) Get(ctx context.Context, id string) (*domain.Distribution, error) {
	d := &domain.Distribution{}
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM impression_distributions WHERE id = $1`, id).Scan(&d.ID, &d.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, distribution.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get distribution: %w", err)
	}

	d.AddressIDs, err = queryStrings(ctx, r.db,
		`SELECT address_id FROM impression_distribution_addresses WHERE distribution_id = $1`, d.ID)
	if err != nil {
		return nil, fmt.Errorf("distribution addresses: %w", err)
	}
	d.ChildIDs, err = queryStrings(ctx, r.db,
		`SELECT child_id FROM impression_distribution_children WHERE parent_id = $1`, d.ID)
	if err != nil {
		return nil, fmt.Errorf("distribution children: %w", err)
	}
	return d, nil
}
