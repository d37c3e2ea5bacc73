package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/impression/internal/auth"
)

// RouterConfig carries the optional pieces of the router.
type RouterConfig struct {
	CORSOrigins []string
	Health      *HealthChecker // nil serves a bare liveness response
}

// NewRouter configures all HTTP routes. Everything under /api requires an
// API token.
func NewRouter(h *Handlers, authn *auth.TokenAuthenticator, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	// Health checks (no auth required)
	if cfg.Health != nil {
		r.Get("/health", cfg.Health.HandleHealth)
		r.Get("/health/live", cfg.Health.HandleLiveness)
		r.Get("/health/ready", cfg.Health.HandleReadiness)
	} else {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(authn.RequireToken)

		r.Route("/send_message", func(r chi.Router) {
			r.Get("/", h.DescribeSendMessage)
			r.Post("/", h.SendMessage)
			r.Put("/", h.SendMessage)
			r.Get("/{service_name}/", h.DescribeSendMessage)
			r.Post("/{service_name}/", h.SendMessage)
			r.Put("/{service_name}/", h.SendMessage)
		})
		r.Post("/unsubscribe/", h.Unsubscribe)
		r.Post("/resubscribe/", h.Resubscribe)
	})

	return r
}
