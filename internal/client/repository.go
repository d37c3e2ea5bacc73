package client

import (
	"context"
	"errors"

	"github.com/ignite/impression/internal/domain"
)

// ErrNoActiveServer is returned when no remote server row is active.
var ErrNoActiveServer = errors.New("no active remote server")

// ServerRepository persists remote relay targets.
type ServerRepository interface {
	ActiveRemoteServer(ctx context.Context) (*domain.RemoteServer, error)
	// SaveRemoteServer upserts srv. Saving an active server deactivates
	// every other row in the same transaction.
	SaveRemoteServer(ctx context.Context, srv *domain.RemoteServer) error
}
