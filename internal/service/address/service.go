package address

import (
	"context"
	"fmt"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/pkg/logger"
)

// Service implements address business logic. It is safe for concurrent use.
type Service struct {
	repo                Repository
	defaultUnsubscribed bool
}

// NewService creates an address service. New rows are created with
// settings.DefaultUnsubscribed as their global unsubscribe flag.
func NewService(repo Repository, settings domain.Settings) *Service {
	return &Service{repo: repo, defaultUnsubscribed: settings.DefaultUnsubscribed}
}

// GetOrCreate normalizes raw, validates it and returns the matching row,
// creating it when needed.
func (s *Service) GetOrCreate(ctx context.Context, raw string) (*domain.EmailAddress, bool, error) {
	addr := NormalizeAddress(raw)
	if err := Validate(addr); err != nil {
		return nil, false, err
	}
	e, created, err := s.repo.GetOrCreate(ctx, addr, s.defaultUnsubscribed)
	if err != nil {
		return nil, false, fmt.Errorf("get or create address: %w", err)
	}
	return e, created, nil
}

// ConvertEmails maps raw strings to rows. Invalid entries are dropped
// individually; only storage errors abort the conversion.
func (s *Service) ConvertEmails(ctx context.Context, raws []string) ([]*domain.EmailAddress, error) {
	out := make([]*domain.EmailAddress, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		e, _, err := s.GetOrCreate(ctx, raw)
		if err != nil {
			if isInvalid(err) {
				logger.Debug("dropping invalid address", "address", raw)
				continue
			}
			return nil, err
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

// GetMany loads addresses by ID.
func (s *Service) GetMany(ctx context.Context, ids []string) ([]*domain.EmailAddress, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.repo.GetMany(ctx, ids)
}

// Unsubscribe opts the address out of one service.
func (s *Service) Unsubscribe(ctx context.Context, raw, serviceID string) (*domain.EmailAddress, error) {
	e, _, err := s.GetOrCreate(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddServiceUnsubscription(ctx, e.ID, serviceID); err != nil {
		return nil, fmt.Errorf("unsubscribe: %w", err)
	}
	return s.reload(ctx, e)
}

// Resubscribe removes a per-service opt-out. The global flag is untouched.
func (s *Service) Resubscribe(ctx context.Context, raw, serviceID string) (*domain.EmailAddress, error) {
	e, _, err := s.GetOrCreate(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RemoveServiceUnsubscription(ctx, e.ID, serviceID); err != nil {
		return nil, fmt.Errorf("resubscribe: %w", err)
	}
	return s.reload(ctx, e)
}

// UnsubscribeAll sets the global opt-out flag.
func (s *Service) UnsubscribeAll(ctx context.Context, raw string) (*domain.EmailAddress, error) {
	return s.setAll(ctx, raw, true)
}

// ResubscribeAll clears the global opt-out flag. Per-service opt-outs stay.
func (s *Service) ResubscribeAll(ctx context.Context, raw string) (*domain.EmailAddress, error) {
	return s.setAll(ctx, raw, false)
}

func (s *Service) setAll(ctx context.Context, raw string, v bool) (*domain.EmailAddress, error) {
	e, _, err := s.GetOrCreate(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetUnsubscribedFromAll(ctx, e.ID, v); err != nil {
		return nil, fmt.Errorf("set unsubscribed_from_all: %w", err)
	}
	return s.reload(ctx, e)
}

func (s *Service) reload(ctx context.Context, e *domain.EmailAddress) (*domain.EmailAddress, error) {
	fresh, err := s.repo.GetByAddress(ctx, e.Address)
	if err != nil {
		return nil, fmt.Errorf("reload address: %w", err)
	}
	return fresh, nil
}
