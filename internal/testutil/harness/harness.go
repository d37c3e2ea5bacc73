// Package harness wires the full dispatch pipeline over the in-memory store
// and transport so tests can drive it end to end.
package harness

import (
	"sync"
	"time"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/service/address"
	"github.com/ignite/impression/internal/service/distribution"
	"github.com/ignite/impression/internal/service/message"
	"github.com/ignite/impression/internal/service/policy"
	"github.com/ignite/impression/internal/service/ratelimit"
	"github.com/ignite/impression/internal/service/template"
	"github.com/ignite/impression/internal/testutil/memstore"
	"github.com/ignite/impression/internal/transport"
)

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Harness holds every wired component.
type Harness struct {
	Store     *memstore.Store
	Settings  domain.Settings
	Clock     *Clock
	Transport *transport.Memory
	Addresses *address.Service
	Resolver  *distribution.Resolver
	Policy    *policy.Engine
	Limiter   *ratelimit.Limiter
	Templates *template.Engine
	Messages  *message.Service
}

// Option adjusts the harness before wiring.
type Option func(*config)

type config struct {
	settings domain.Settings
	archiver message.Archiver
}

// WithSettings overrides the default settings.
func WithSettings(s domain.Settings) Option { return func(c *config) { c.settings = s } }

// WithArchiver installs an archiver on the message service.
func WithArchiver(a message.Archiver) Option { return func(c *config) { c.archiver = a } }

// New wires a harness with the clock at 2019-12-11 04:32:45 UTC.
func New(opts ...Option) *Harness {
	cfg := config{settings: domain.DefaultSettings()}
	for _, o := range opts {
		o(&cfg)
	}

	clock := &Clock{t: time.Date(2019, 12, 11, 4, 32, 45, 0, time.UTC)}
	store := memstore.New()
	store.Now = clock.Now

	h := &Harness{
		Store:     store,
		Settings:  cfg.settings,
		Clock:     clock,
		Transport: transport.NewMemory(),
	}
	h.Addresses = address.NewService(store, cfg.settings)
	h.Resolver = distribution.NewResolver(store.Distributions())
	h.Policy = policy.NewEngine(store.Services(), h.Addresses, h.Resolver, cfg.settings)
	h.Limiter = ratelimit.NewLimiter(store.Messages(), ratelimit.WithClock(clock.Now))
	h.Templates = template.NewEngine(store.Templates())
	h.Messages = message.NewService(message.Deps{
		Repo:      store.Messages(),
		Addresses: h.Addresses,
		Policy:    h.Policy,
		Limiter:   h.Limiter,
		Templates: h.Templates,
		Transport: h.Transport,
		Archiver:  cfg.archiver,
		Now:       clock.Now,
	})
	return h
}

// Principal registers a token principal in the given groups.
func (h *Harness) Principal(id, token string, groups ...string) *domain.Principal {
	return h.Store.AddPrincipal(&domain.Principal{Type: "token", ID: id, Name: id, GroupIDs: groups}, token)
}

// Service registers an active service allowing the given groups.
func (h *Harness) Service(name string, groups ...string) *domain.Service {
	return h.Store.AddService(&domain.Service{
		Name:            name,
		IsActive:        true,
		JSONBodyPolicy:  domain.JSONBodyPermit,
		AllowedGroupIDs: groups,
	})
}
