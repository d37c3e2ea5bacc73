package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/impression/internal/auth"
	"github.com/ignite/impression/internal/config"
)

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server. health may be nil.
func NewServer(cfg config.ServerConfig, handlers *Handlers, authn *auth.TokenAuthenticator, health *HealthChecker) *Server {
	router := NewRouter(handlers, authn, RouterConfig{
		CORSOrigins: cfg.CORSOrigins,
		Health:      health,
	})
	return &Server{config: cfg, handler: router}
}

// ListenAndServe starts the HTTP server on the configured address.
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
