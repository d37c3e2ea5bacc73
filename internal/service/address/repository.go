package address

import (
	"context"

	"github.com/ignite/impression/internal/domain"
)

// Repository defines the data access contract for email addresses.
type Repository interface {
	// GetOrCreate returns the row for a normalized address, inserting it with
	// the given global unsubscribe flag when missing. created reports an insert.
	GetOrCreate(ctx context.Context, address string, unsubscribedFromAll bool) (addr *domain.EmailAddress, created bool, err error)

	// GetByAddress returns ErrNotFound when no row exists.
	GetByAddress(ctx context.Context, address string) (*domain.EmailAddress, error)

	// GetMany loads addresses by ID. Unknown IDs are skipped.
	GetMany(ctx context.Context, ids []string) ([]*domain.EmailAddress, error)

	SetUnsubscribedFromAll(ctx context.Context, id string, unsubscribed bool) error
	AddServiceUnsubscription(ctx context.Context, addressID, serviceID string) error
	RemoveServiceUnsubscription(ctx context.Context, addressID, serviceID string) error
}
