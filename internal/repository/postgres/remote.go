package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/impression/internal/client"
	"github.com/ignite/impression/internal/domain"
)

// RemoteServerRepo implements client.ServerRepository against PostgreSQL.
type RemoteServerRepo struct{ db *sql.DB }

// NewRemoteServerRepo creates a Postgres-backed remote server repository.
func NewRemoteServerRepo(db *sql.DB) *RemoteServerRepo { return &RemoteServerRepo{db: db} }

func (r *RemoteServerRepo) ActiveRemoteServer(ctx context.Context) (*domain.RemoteServer, error) {
	s := &domain.RemoteServer{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, target, token, active, created_at
		FROM impression_remote_servers
		WHERE active
		LIMIT 1
	`).Scan(&s.ID, &s.Name, &s.Target, &s.Token, &s.Active, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, client.ErrNoActiveServer
	}
	if err != nil {
		return nil, fmt.Errorf("active remote server: %w", err)
	}
	return s, nil
}

func (r *RemoteServerRepo) SaveRemoteServer(ctx context.Context, srv *domain.RemoteServer) error {
	if srv.ID == "" {
		srv.ID = uuid.New().String()
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if srv.Active {
			if _, err := tx.ExecContext(ctx,
				`UPDATE impression_remote_servers SET active = FALSE WHERE active AND id <> $1`, srv.ID); err != nil {
				return fmt.Errorf("deactivate remote servers: %w", err)
			}
		}
		err := tx.QueryRowContext(ctx, `
			INSERT INTO impression_remote_servers (id, name, target, token, active, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, target = EXCLUDED.target,
			    token = EXCLUDED.token, active = EXCLUDED.active
			RETURNING created_at
		`, srv.ID, srv.Name, srv.Target, srv.Token, srv.Active).Scan(&srv.CreatedAt)
		if err != nil {
			return fmt.Errorf("save remote server: %w", err)
		}
		return nil
	})
}
