// Package memstore is an in-memory implementation of every repository
// interface, used by service, API and worker tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ignite/impression/internal/auth"
	"github.com/ignite/impression/internal/client"
	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/service/address"
	"github.com/ignite/impression/internal/service/distribution"
	"github.com/ignite/impression/internal/service/message"
	"github.com/ignite/impression/internal/service/policy"
	"github.com/ignite/impression/internal/service/ratelimit"
	"github.com/ignite/impression/internal/service/template"
)

// Store holds all rows in maps guarded by one mutex.
type Store struct {
	mu  sync.Mutex
	seq int

	// Now stamps created/updated times. Defaults to time.Now.
	Now func() time.Time

	addresses     map[string]*domain.EmailAddress
	addressByName map[string]string
	distributions map[string]*domain.Distribution
	services      map[string]*domain.Service
	templates     map[string]*domain.Template
	messages      map[string]*domain.Message
	principals    map[domain.PrincipalRef]*domain.Principal
	tokens        map[string]domain.PrincipalRef
	servers       []*domain.RemoteServer

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

var (
	_ address.Repository       = (*Store)(nil)
	_ distribution.Repository  = (*DistributionRepo)(nil)
	_ policy.ServiceRepository = (*ServiceRepo)(nil)
	_ template.Repository      = (*TemplateRepo)(nil)
	_ ratelimit.Counter        = (*MessageRepo)(nil)
	_ message.Repository       = (*MessageRepo)(nil)
	_ auth.Repository          = (*Store)(nil)
	_ client.ServerRepository  = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		Now:           time.Now,
		addresses:     map[string]*domain.EmailAddress{},
		addressByName: map[string]string{},
		distributions: map[string]*domain.Distribution{},
		services:      map[string]*domain.Service{},
		templates:     map[string]*domain.Template{},
		messages:      map[string]*domain.Message{},
		principals:    map[domain.PrincipalRef]*domain.Principal{},
		tokens:        map[string]domain.PrincipalRef{},
		locks:         map[string]*sync.Mutex{},
	}
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

// ── Seeding ──────────────────────────────────────────────────────────────

// AddAddress inserts (or returns) the row for addr.
func (s *Store) AddAddress(addr string) *domain.EmailAddress {
	e, _, _ := s.GetOrCreate(context.Background(), strings.ToLower(addr), false)
	return e
}

// AddDistribution stores d, assigning an ID when empty.
func (s *Store) AddDistribution(d *domain.Distribution) *domain.Distribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = s.nextID("dist")
	}
	s.distributions[d.ID] = d
	return d
}

// AddService stores svc, assigning an ID when empty.
func (s *Store) AddService(svc *domain.Service) *domain.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc.ID == "" {
		svc.ID = s.nextID("svc")
	}
	s.services[svc.ID] = svc
	return svc
}

// AddTemplate stores t, assigning an ID when empty.
func (s *Store) AddTemplate(t *domain.Template) *domain.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = s.nextID("tpl")
	}
	s.templates[t.ID] = t
	return t
}

// AddPrincipal registers p and, when token is non-empty, an API token for it.
func (s *Store) AddPrincipal(p *domain.Principal, token string) *domain.Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principals[p.Ref()] = p
	if token != "" {
		s.tokens[auth.HashToken(token)] = p.Ref()
	}
	return p
}

// AllMessages returns copies of every stored message ordered by creation.
func (s *Store) AllMessages() []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, cloneMessage(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

// ── address.Repository ───────────────────────────────────────────────────

func cloneAddress(e *domain.EmailAddress) *domain.EmailAddress {
	c := *e
	c.UnsubscribedFrom = append([]string(nil), e.UnsubscribedFrom...)
	return &c
}

func (s *Store) GetOrCreate(_ context.Context, addr string, unsubscribed bool) (*domain.EmailAddress, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.addressByName[addr]; ok {
		return cloneAddress(s.addresses[id]), false, nil
	}
	e := &domain.EmailAddress{ID: s.nextID("addr"), Address: addr, UnsubscribedFromAll: unsubscribed, CreatedAt: s.Now()}
	s.addresses[e.ID] = e
	s.addressByName[addr] = e.ID
	return cloneAddress(e), true, nil
}

func (s *Store) GetByAddress(_ context.Context, addr string) (*domain.EmailAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.addressByName[addr]
	if !ok {
		return nil, address.ErrNotFound
	}
	return cloneAddress(s.addresses[id]), nil
}

func (s *Store) GetMany(_ context.Context, ids []string) ([]*domain.EmailAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.EmailAddress, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.addresses[id]; ok {
			out = append(out, cloneAddress(e))
		}
	}
	return out, nil
}

func (s *Store) address(id string) (*domain.EmailAddress, error) {
	e, ok := s.addresses[id]
	if !ok {
		return nil, address.ErrNotFound
	}
	return e, nil
}

func (s *Store) SetUnsubscribedFromAll(_ context.Context, id string, v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.address(id)
	if err != nil {
		return err
	}
	e.UnsubscribedFromAll = v
	return nil
}

func (s *Store) AddServiceUnsubscription(_ context.Context, addressID, serviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.address(addressID)
	if err != nil {
		return err
	}
	for _, id := range e.UnsubscribedFrom {
		if id == serviceID {
			return nil
		}
	}
	e.UnsubscribedFrom = append(e.UnsubscribedFrom, serviceID)
	return nil
}

func (s *Store) RemoveServiceUnsubscription(_ context.Context, addressID, serviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.address(addressID)
	if err != nil {
		return err
	}
	var kept []string
	for _, id := range e.UnsubscribedFrom {
		if id != serviceID {
			kept = append(kept, id)
		}
	}
	e.UnsubscribedFrom = kept
	return nil
}

// ── distribution.Repository ──────────────────────────────────────────────

// DistributionRepo is the distribution.Repository view of a Store.
type DistributionRepo struct{ s *Store }

// Distributions returns the distribution repository view.
func (s *Store) Distributions() *DistributionRepo { return &DistributionRepo{s} }

func (r *DistributionRepo) Get(_ context.Context, id string) (*domain.Distribution, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.distributions[id]
	if !ok {
		return nil, distribution.ErrNotFound
	}
	return d, nil
}

// ── policy.ServiceRepository ─────────────────────────────────────────────

// ServiceRepo is the policy.ServiceRepository view of a Store.
type ServiceRepo struct{ s *Store }

// Services returns the service repository view.
func (s *Store) Services() *ServiceRepo { return &ServiceRepo{s} }

func (r *ServiceRepo) Get(_ context.Context, id string) (*domain.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	svc, ok := r.s.services[id]
	if !ok {
		return nil, policy.ErrServiceNotFound
	}
	return r.s.hydrate(svc), nil
}

func (r *ServiceRepo) GetByName(_ context.Context, name string) (*domain.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, svc := range r.s.services {
		if svc.Name == name {
			return r.s.hydrate(svc), nil
		}
	}
	return nil, policy.ErrServiceNotFound
}

// hydrate copies svc and refreshes its default sender from the address table.
func (s *Store) hydrate(svc *domain.Service) *domain.Service {
	c := *svc
	if svc.FromAddress != nil {
		if e, ok := s.addresses[svc.FromAddress.ID]; ok {
			c.FromAddress = cloneAddress(e)
		}
	}
	return &c
}

// ── template.Repository ──────────────────────────────────────────────────

// TemplateRepo is the template.Repository view of a Store.
type TemplateRepo struct{ s *Store }

// Templates returns the template repository view.
func (s *Store) Templates() *TemplateRepo { return &TemplateRepo{s} }

func (r *TemplateRepo) Get(_ context.Context, id string) (*domain.Template, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.templates[id]
	if !ok {
		return nil, template.ErrNotFound
	}
	c := *t
	return &c, nil
}

// ── message.Repository / ratelimit.Counter ───────────────────────────────

// MessageRepo is the message.Repository and ratelimit.Counter view of a Store.
type MessageRepo struct{ s *Store }

// Messages returns the message repository view.
func (s *Store) Messages() *MessageRepo { return &MessageRepo{s} }

func cloneMessage(m *domain.Message) *domain.Message {
	c := *m
	c.ExtraTo = append([]string(nil), m.ExtraTo...)
	c.ExtraCC = append([]string(nil), m.ExtraCC...)
	c.ExtraBCC = append([]string(nil), m.ExtraBCC...)
	return &c
}

func (r *MessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.services[msg.ServiceID]; !ok {
		return fmt.Errorf("service %s does not exist", msg.ServiceID)
	}
	now := r.s.Now()
	msg.ID = r.s.nextID("msg")
	msg.Created = now
	msg.Updated = now
	r.s.messages[msg.ID] = cloneMessage(msg)
	return nil
}

func (r *MessageRepo) Get(_ context.Context, id string) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok {
		return nil, message.ErrNotFound
	}
	return cloneMessage(m), nil
}

func (r *MessageRepo) MarkReady(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok {
		return message.ErrNotFound
	}
	m.ReadyToSend = true
	m.Updated = r.s.Now()
	return nil
}

func (r *MessageRepo) rowLock(id string) *sync.Mutex {
	r.s.locksMu.Lock()
	defer r.s.locksMu.Unlock()
	l, ok := r.s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.s.locks[id] = l
	}
	return l
}

// memTx buffers writes until the WithLock callback succeeds.
type memTx struct {
	attempt *time.Time
	sent    *time.Time
	final   *domain.FinalSnapshot
}

func (t *memTx) RecordAttempt(_ context.Context, _ string, at time.Time) error {
	t.attempt = &at
	return nil
}

func (t *memTx) RecordSent(_ context.Context, _ string, at time.Time, final domain.FinalSnapshot) error {
	t.sent = &at
	t.final = &final
	return nil
}

func (r *MessageRepo) WithLock(ctx context.Context, id string, fn func(ctx context.Context, tx message.TxRepository, msg *domain.Message) error) error {
	l := r.rowLock(id)
	l.Lock()
	defer l.Unlock()

	msg, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	tx := &memTx{}
	if err := fn(ctx, tx, msg); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := r.s.messages[id]
	if tx.attempt != nil {
		m.LastAttempt = tx.attempt
		m.Updated = r.s.Now()
	}
	if tx.sent != nil && m.Sent == nil {
		m.Sent = tx.sent
		m.Final = *tx.final
	}
	return nil
}

func (r *MessageRepo) ListPendingIDs(_ context.Context, includeFailed bool) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []string
	for id, m := range r.s.messages {
		if m.Pending() || (includeFailed && m.Retryable()) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *MessageRepo) CountMessages(_ context.Context, f ratelimit.CountFilter) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, m := range r.s.messages {
		if m.ServiceID != f.ServiceID || m.Created.Before(f.Start) || m.Created.After(f.End) {
			continue
		}
		switch {
		case f.User != nil:
			if m.Principal != *f.User {
				continue
			}
		case f.Anonymous:
			if !m.Principal.IsZero() {
				continue
			}
		case f.GroupID != "":
			p, ok := r.s.principals[m.Principal]
			if !ok || len(p.SharedGroups([]string{f.GroupID})) == 0 {
				continue
			}
		}
		n++
	}
	return n, nil
}

// ── auth.Repository ──────────────────────────────────────────────────────

func (s *Store) PrincipalByToken(_ context.Context, token string) (*domain.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.tokens[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	p := *s.principals[ref]
	p.GroupIDs = append([]string(nil), p.GroupIDs...)
	return &p, nil
}

// ── client.ServerRepository ──────────────────────────────────────────────

func (s *Store) ActiveRemoteServer(_ context.Context) (*domain.RemoteServer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, srv := range s.servers {
		if srv.Active {
			c := *srv
			return &c, nil
		}
	}
	return nil, client.ErrNoActiveServer
}

func (s *Store) SaveRemoteServer(_ context.Context, srv *domain.RemoteServer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if srv.ID == "" {
		srv.ID = s.nextID("remote")
		srv.CreatedAt = s.Now()
	}
	if srv.Active {
		for _, other := range s.servers {
			if other.ID != srv.ID {
				other.Active = false
			}
		}
	}
	c := *srv
	for i, existing := range s.servers {
		if existing.ID == srv.ID {
			s.servers[i] = &c
			return nil
		}
	}
	s.servers = append(s.servers, &c)
	return nil
}

// RemoteServers returns copies of all stored remote servers.
func (s *Store) RemoteServers() []domain.RemoteServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RemoteServer, len(s.servers))
	for i, srv := range s.servers {
		out[i] = *srv
	}
	return out
}
