package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/pkg/logger"
)

// Servers manages remote relay targets.
type Servers struct {
	repo     ServerRepository
	settings domain.Settings
}

// NewServers creates a server registry. repo may be nil, in which case the
// configured defaults are always used.
func NewServers(repo ServerRepository, settings domain.Settings) *Servers {
	return &Servers{repo: repo, settings: settings}
}

// Save stores srv. Activating a server deactivates all others.
func (s *Servers) Save(ctx context.Context, srv *domain.RemoteServer) error {
	if s.repo == nil {
		return errors.New("no remote server repository configured")
	}
	if srv.Target == "" {
		srv.Target = s.settings.DefaultTarget
	}
	if err := s.repo.SaveRemoteServer(ctx, srv); err != nil {
		return fmt.Errorf("save remote server: %w", err)
	}
	return nil
}

// TargetAndToken returns the active server's target and token, falling
// back to the configured defaults when none is active or the lookup fails.
func (s *Servers) TargetAndToken(ctx context.Context) (string, string) {
	if s.repo != nil {
		srv, err := s.repo.ActiveRemoteServer(ctx)
		switch {
		case err == nil:
			return srv.Target, srv.Token
		case !errors.Is(err, ErrNoActiveServer):
			logger.Warn("remote server lookup failed, using defaults", "error", err)
		}
	}
	return s.settings.DefaultTarget, s.settings.DefaultToken
}
