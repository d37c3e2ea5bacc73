package auth

import (
	"context"
	"errors"

	"github.com/ignite/impression/internal/domain"
)

// Sentinel errors for token authentication.
var (
	ErrInvalidToken = errors.New("invalid token")
)

// Repository resolves API tokens to principals with their group IDs.
type Repository interface {
	// PrincipalByToken returns ErrInvalidToken for unknown or revoked tokens.
	PrincipalByToken(ctx context.Context, token string) (*domain.Principal, error)
}
