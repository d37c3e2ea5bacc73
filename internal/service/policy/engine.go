package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/service/distribution"
)

// Recipients holds final, filtered recipients per header.
type Recipients struct {
	To  domain.AddressSet
	CC  domain.AddressSet
	BCC domain.AddressSet
}

// Kind returns the set for kind.
func (r Recipients) Kind(kind domain.RecipientKind) domain.AddressSet {
	switch kind {
	case domain.KindCC:
		return r.CC
	case domain.KindBCC:
		return r.BCC
	default:
		return r.To
	}
}

// Empty reports whether no recipient survived.
func (r Recipients) Empty() bool {
	return len(r.To) == 0 && len(r.CC) == 0 && len(r.BCC) == 0
}

// Engine evaluates service policies.
type Engine struct {
	services ServiceRepository
	addrs    Addresses
	dists    Distributions
	settings domain.Settings
}

// NewEngine creates a policy engine.
func NewEngine(services ServiceRepository, addrs Addresses, dists Distributions, settings domain.Settings) *Engine {
	return &Engine{services: services, addrs: addrs, dists: dists, settings: settings}
}

// ServiceByName resolves an active service. Malformed, unknown and inactive
// names all yield ErrServiceNotFound.
func (e *Engine) ServiceByName(ctx context.Context, name string) (*domain.Service, error) {
	if err := domain.ValidateServiceName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceNotFound, err)
	}
	svc, err := e.services.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, fmt.Errorf("%w: %s is inactive", ErrServiceNotFound, name)
	}
	return svc, nil
}

// Service loads a service by ID regardless of its active flag.
func (e *Engine) Service(ctx context.Context, id string) (*domain.Service, error) {
	return e.services.Get(ctx, id)
}

// Authorize checks that principal belongs to one of the service's allowed groups.
func (e *Engine) Authorize(svc *domain.Service, principal *domain.Principal) error {
	if principal == nil || len(principal.SharedGroups(svc.AllowedGroupIDs)) == 0 {
		return ErrAccessDenied
	}
	return nil
}

// AuthorizeGlobal checks that principal may change an address's global
// opt-out, which is reserved to the configured subscription admin group.
func (e *Engine) AuthorizeGlobal(principal *domain.Principal) error {
	admins := e.settings.SubscriptionAdminGroup
	if admins == "" || principal == nil || len(principal.SharedGroups([]string{admins})) == 0 {
		return ErrAccessDenied
	}
	return nil
}

// CollectEmailAddresses expands the service's configured targets per kind:
// direct addresses plus every address reachable from its distributions.
func (e *Engine) CollectEmailAddresses(ctx context.Context, svc *domain.Service) (to, cc, bcc domain.AddressSet, err error) {
	sets := make([]domain.AddressSet, len(domain.RecipientKinds))
	for i, kind := range domain.RecipientKinds {
		if sets[i], err = e.collectKind(ctx, svc.Targets(kind)); err != nil {
			return nil, nil, nil, fmt.Errorf("collect %s addresses: %w", kind, err)
		}
	}
	return sets[0], sets[1], sets[2], nil
}

func (e *Engine) collectKind(ctx context.Context, t domain.Targets) (domain.AddressSet, error) {
	ids := make(map[string]struct{}, len(t.AddressIDs))
	for _, id := range t.AddressIDs {
		ids[id] = struct{}{}
	}
	visited := distribution.Visited{}
	for _, d := range t.DistributionIDs {
		if _, seen := visited[d]; seen {
			continue
		}
		got, err := e.dists.CollectInto(ctx, d, visited)
		if err != nil {
			return nil, err
		}
		for id := range got {
			ids[id] = struct{}{}
		}
	}
	return e.load(ctx, ids)
}

func (e *Engine) load(ctx context.Context, ids map[string]struct{}) (domain.AddressSet, error) {
	if len(ids) == 0 {
		return domain.AddressSet{}, nil
	}
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	addrs, err := e.addrs.GetMany(ctx, list)
	if err != nil {
		return nil, err
	}
	return domain.NewAddressSet(addrs...), nil
}

// FilterUnsubscribed drops opted-out addresses when the service honours
// unsubscribes. Otherwise the set is returned unchanged.
func (e *Engine) FilterUnsubscribed(svc *domain.Service, set domain.AddressSet) domain.AddressSet {
	if !svc.IsUnsubscribable {
		return set
	}
	out := make(domain.AddressSet, len(set))
	for id, a := range set {
		if !a.IsUnsubscribedFrom(svc.ID) {
			out[id] = a
		}
	}
	return out
}

// FromEmail picks the sender: the override when the service allows it, then
// the service default, then the configured default sender.
func (e *Engine) FromEmail(ctx context.Context, svc *domain.Service, override *domain.EmailAddress) (*domain.EmailAddress, error) {
	if override != nil && svc.AllowOverrideEmailFrom {
		return override, nil
	}
	if svc.FromAddress != nil {
		return svc.FromAddress, nil
	}
	addr, _, err := e.addrs.GetOrCreate(ctx, e.settings.DefaultFromEmail)
	if err != nil {
		return nil, fmt.Errorf("default from address: %w", err)
	}
	return addr, nil
}

// FinalRecipients merges the service expansion with the message's extra
// recipients (when the service accepts them) and filters opt-outs.
func (e *Engine) FinalRecipients(ctx context.Context, svc *domain.Service, msg *domain.Message) (Recipients, error) {
	to, cc, bcc, err := e.CollectEmailAddresses(ctx, svc)
	if err != nil {
		return Recipients{}, err
	}
	base := []domain.AddressSet{to, cc, bcc}
	if svc.AllowExtraTargetEmailAddresses {
		for i, kind := range domain.RecipientKinds {
			extras := msg.Extras(kind)
			if len(extras) == 0 {
				continue
			}
			addrs, err := e.addrs.GetMany(ctx, extras)
			if err != nil {
				return Recipients{}, fmt.Errorf("load extra %s addresses: %w", kind, err)
			}
			base[i].Union(domain.NewAddressSet(addrs...))
		}
	}
	return Recipients{
		To:  e.FilterUnsubscribed(svc, base[0]),
		CC:  e.FilterUnsubscribed(svc, base[1]),
		BCC: e.FilterUnsubscribed(svc, base[2]),
	}, nil
}

// IsConfigError reports whether err stems from an invalid service row.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrUnknownJSONBodyPolicy)
}
