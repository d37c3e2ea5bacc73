package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/impression/internal/auth"
	"github.com/ignite/impression/internal/domain"
)

// TokenRepo implements auth.Repository against PostgreSQL. Tokens are
// looked up by their SHA-256 hash; plaintext tokens are never stored.
type TokenRepo struct{ db *sql.DB }

// NewTokenRepo creates a Postgres-backed token repository.
func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

func (r *TokenRepo) PrincipalByToken(ctx context.Context, tokenHash string) (*domain.Principal, error) {
	p := &domain.Principal{}
	err := r.db.QueryRowContext(ctx, `
		SELECT principal_type, principal_id, name
		FROM impression_api_tokens
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, tokenHash).Scan(&p.Type, &p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}

	p.GroupIDs, err = queryStrings(ctx, r.db, `
		SELECT group_id::text FROM impression_principal_groups
		WHERE principal_type = $1 AND principal_id = $2
		ORDER BY group_id
	`, p.Type, p.ID)
	if err != nil {
		return nil, fmt.Errorf("principal groups: %w", err)
	}
	return p, nil
}
