package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/service/address"
)

const addressColumns = `
	a.id, a.email_address, a.unsubscribed_from_all, a.created_at,
	ARRAY(SELECT u.service_id::text FROM impression_address_unsubscriptions u
	      WHERE u.address_id = a.id ORDER BY u.service_id)`

// AddressRepo implements address.Repository against PostgreSQL.
type AddressRepo struct{ db *sql.DB }

// NewAddressRepo creates a Postgres-backed address repository.
func NewAddressRepo(db *sql.DB) *AddressRepo { return &AddressRepo{db: db} }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAddress(row rowScanner) (*domain.EmailAddress, error) {
	e := &domain.EmailAddress{}
	var unsub []string
	if err := row.Scan(&e.ID, &e.Address, &e.UnsubscribedFromAll, &e.CreatedAt, pq.Array(&unsub)); err != nil {
		return nil, err
	}
	if len(unsub) > 0 {
		e.UnsubscribedFrom = unsub
	}
	return e, nil
}

func (r *AddressRepo) GetOrCreate(ctx context.Context, addr string, unsubscribedFromAll bool) (*domain.EmailAddress, bool, error) {
	id := uuid.New().String()
	var createdAt time.Time
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO impression_email_addresses (id, email_address, unsubscribed_from_all, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (email_address) DO NOTHING
		RETURNING created_at
	`, id, addr, unsubscribedFromAll).Scan(&createdAt)
	if err == nil {
		return &domain.EmailAddress{
			ID:                  id,
			Address:             addr,
			UnsubscribedFromAll: unsubscribedFromAll,
			CreatedAt:           createdAt,
		}, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("insert email address: %w", err)
	}
	e, err := r.GetByAddress(ctx, addr)
	if err != nil {
		return nil, false, err
	}
	return e, false, nil
}

func (r *AddressRepo) GetByAddress(ctx context.Context, addr string) (*domain.EmailAddress, error) {
	e, err := scanAddress(r.db.QueryRowContext(ctx,
		`SELECT `+addressColumns+` FROM impression_email_addresses a WHERE a.email_address = $1`, addr))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, address.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get email address: %w", err)
	}
	return e, nil
}

func (r *AddressRepo) GetMany(ctx context.Context, ids []string) ([]*domain.EmailAddress, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+addressColumns+` FROM impression_email_addresses a
		 WHERE a.id = ANY($1::uuid[]) ORDER BY a.email_address`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list email addresses: %w", err)
	}
	defer rows.Close()

	var out []*domain.EmailAddress
	for rows.Next() {
		e, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan email address: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *AddressRepo) SetUnsubscribedFromAll(ctx context.Context, id string, unsubscribed bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE impression_email_addresses SET unsubscribed_from_all = $2 WHERE id = $1`, id, unsubscribed)
	if err != nil {
		return fmt.Errorf("update unsubscribed_from_all: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return address.ErrNotFound
	}
	return nil
}

func (r *AddressRepo) AddServiceUnsubscription(ctx context.Context, addressID, serviceID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO impression_address_unsubscriptions (address_id, service_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (address_id, service_id) DO NOTHING
	`, addressID, serviceID)
	if err != nil {
		return fmt.Errorf("add unsubscription: %w", err)
	}
	return nil
}

func (r *AddressRepo) RemoveServiceUnsubscription(ctx context.Context, addressID, serviceID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM impression_address_unsubscriptions WHERE address_id = $1 AND service_id = $2`,
		addressID, serviceID)
	if err != nil {
		return fmt.Errorf("remove unsubscription: %w", err)
	}
	return nil
}
