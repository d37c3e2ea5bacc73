package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/pkg/logger"
	"github.com/ignite/impression/internal/service/address"
	"github.com/ignite/impression/internal/service/policy"
	"github.com/ignite/impression/internal/service/ratelimit"
	"github.com/ignite/impression/internal/service/template"
)

// Deps groups the collaborators of a Service.
type Deps struct {
	Repo      Repository
	Addresses *address.Service
	Policy    *policy.Engine
	Limiter   *ratelimit.Limiter
	Templates *template.Engine
	Transport Transport
	Archiver  Archiver // optional
	Now       func() time.Time
}

// Service runs message creation and delivery. It is safe for concurrent use.
type Service struct {
	repo      Repository
	addrs     *address.Service
	policy    *policy.Engine
	limiter   *ratelimit.Limiter
	templates *template.Engine
	transport Transport
	archiver  Archiver
	now       func() time.Time
}

// NewService creates a message service.
func NewService(d Deps) *Service {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      d.Repo,
		addrs:     d.Addresses,
		policy:    d.Policy,
		limiter:   d.Limiter,
		templates: d.Templates,
		transport: d.Transport,
		archiver:  d.Archiver,
		now:       now,
	}
}

// CreateInput describes a new message for an already resolved service.
type CreateInput struct {
	Service      *domain.Service
	Principal    *domain.Principal
	Subject      string
	Body         string
	OverrideFrom *domain.EmailAddress
	ExtraTo      []*domain.EmailAddress
	ExtraCC      []*domain.EmailAddress
	ExtraBCC     []*domain.EmailAddress
}

// Create admits and stores a message. Nothing is stored when the rate
// limit is reached or the body violates a "require" JSON policy.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Message, error) {
	ok, err := s.limiter.Check(ctx, in.Service, in.Principal)
	if err != nil {
		logger.Error("rate limit check failed", "service", in.Service.Name, "error", err)
		return nil, fmt.Errorf("check rate limit: %w", err)
	}
	if !ok {
		rule := in.Service.RateLimit.Rule()
		logger.Info("rate limit reached", "service", in.Service.Name, "rate_limit", in.Service.RateLimit.Name, "rule", rule)
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, rule)
	}
	if _, err := policy.ExtractBody(in.Service.JSONBodyPolicy, in.Body); err != nil {
		if policy.IsConfigError(err) {
			logger.Error("service has invalid json body policy", "service", in.Service.Name, "error", err)
		}
		return nil, err
	}

	msg := &domain.Message{
		ServiceID:    in.Service.ID,
		Subject:      in.Subject,
		Body:         in.Body,
		OverrideFrom: in.OverrideFrom,
		ExtraTo:      ids(in.ExtraTo),
		ExtraCC:      ids(in.ExtraCC),
		ExtraBCC:     ids(in.ExtraBCC),
	}
	if in.Principal != nil {
		msg.Principal = in.Principal.Ref()
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

func ids(addrs []*domain.EmailAddress) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.ID)
	}
	return out
}

// Get returns a message by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Message, error) {
	return s.repo.Get(ctx, id)
}

// MarkReady flags the message as ready and, when it has not been attempted
// yet, sends it.
func (s *Service) MarkReady(ctx context.Context, id string) (*domain.Message, error) {
	if err := s.repo.MarkReady(ctx, id); err != nil {
		return nil, fmt.Errorf("mark ready: %w", err)
	}
	return s.Send(ctx, id)
}

// Send makes the single delivery attempt for a pending message. Messages
// already attempted or sent are returned unchanged.
func (s *Service) Send(ctx context.Context, id string) (*domain.Message, error) {
	return s.deliver(ctx, id, (*domain.Message).Pending)
}

// Retry re-attempts a message whose earlier attempt failed. Sent messages
// are returned unchanged.
func (s *Service) Retry(ctx context.Context, id string) (*domain.Message, error) {
	return s.deliver(ctx, id, func(m *domain.Message) bool { return m.Pending() || m.Retryable() })
}

// PendingIDs lists delivery candidates for a re-drive sweep.
func (s *Service) PendingIDs(ctx context.Context, includeFailed bool) ([]string, error) {
	return s.repo.ListPendingIDs(ctx, includeFailed)
}

func (s *Service) deliver(ctx context.Context, id string, eligible func(*domain.Message) bool) (*domain.Message, error) {
	var (
		out  *domain.Message
		sent *domain.Envelope
	)
	err := s.repo.WithLock(ctx, id, func(ctx context.Context, tx TxRepository, msg *domain.Message) error {
		out = msg
		if !msg.ReadyToSend {
			return ErrNotReady
		}
		if !eligible(msg) {
			return nil
		}
		env, err := s.attempt(ctx, tx, msg)
		if err != nil {
			return err
		}
		sent = env
		return nil
	})
	if err != nil {
		return out, err
	}
	if sent != nil && s.archiver != nil {
		if err := s.archiver.Archive(ctx, out, sent); err != nil {
			logger.Warn("archive sent message failed", "message_id", id, "error", err)
		}
	}
	return out, nil
}

// attempt composes and sends msg. Composition and transport failures are
// recorded as a failed attempt; only storage errors while recording are
// returned. It returns the envelope when delivery succeeded.
func (s *Service) attempt(ctx context.Context, tx TxRepository, msg *domain.Message) (*domain.Envelope, error) {
	env, composeErr := s.compose(ctx, msg)

	at := s.now()
	if err := tx.RecordAttempt(ctx, msg.ID, at); err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}
	msg.LastAttempt = &at

	if composeErr != nil {
		logger.Error("message could not be composed", "message_id", msg.ID, "error", composeErr)
		return nil, nil
	}
	if len(env.Recipients()) == 0 {
		logger.Warn("message has no recipients after filtering", "message_id", msg.ID)
		return nil, nil
	}

	result, err := s.transport.Send(ctx, env)
	if err != nil || result == nil || !result.Success {
		reason := "transport reported failure"
		if err != nil {
			reason = err.Error()
		} else if result != nil && result.Error != "" {
			reason = result.Error
		}
		logger.Warn("message delivery failed", "message_id", msg.ID, "to", env.Recipients(), "error", reason)
		return nil, nil
	}

	sentAt := s.now()
	final := env.Snapshot()
	if err := tx.RecordSent(ctx, msg.ID, sentAt, final); err != nil {
		return nil, fmt.Errorf("record sent: %w", err)
	}
	msg.Sent = &sentAt
	msg.Final = final
	logger.Info("message sent", "message_id", msg.ID, "service", env.ServiceName, "to", env.Recipients())
	return env, nil
}

// compose renders the message and resolves its recipients and sender.
func (s *Service) compose(ctx context.Context, msg *domain.Message) (*domain.Envelope, error) {
	svc, err := s.policy.Service(ctx, msg.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("load service: %w", err)
	}
	bindings, err := policy.RenderContext(svc, msg.Subject, msg.Body)
	if err != nil {
		return nil, err
	}
	renderer, err := s.templates.Resolve(ctx, svc.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("resolve template: %w", err)
	}
	rendered, err := renderer.Render(bindings)
	if err != nil {
		return nil, err
	}
	recipients, err := s.policy.FinalRecipients(ctx, svc, msg)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	from, err := s.policy.FromEmail(ctx, svc, msg.OverrideFrom)
	if err != nil {
		return nil, err
	}
	return &domain.Envelope{
		MessageID:     msg.ID,
		ServiceName:   svc.Name,
		From:          from.Address,
		To:            recipients.To.Strings(),
		CC:            recipients.CC.Strings(),
		BCC:           recipients.BCC.Strings(),
		Subject:       rendered.Subject,
		BodyPlaintext: rendered.Text,
		BodyHTML:      rendered.HTML,
	}, nil
}

// SubmitInput is an inbound send request as received from the API or a
// local client backend. Addresses are raw strings and parsed leniently.
type SubmitInput struct {
	ServiceName string
	Principal   *domain.Principal
	Subject     string
	Body        string
	From        string
	To          []string
	CC          []string
	BCC         []string

	// Trusted callers such as the local client backend skip group
	// authorization.
	Trusted bool
}

// Submit runs the inbound flow: resolve and authorize the service, convert
// addresses, create the message and mark it ready.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*domain.Message, error) {
	svc, err := s.policy.ServiceByName(ctx, in.ServiceName)
	if err != nil {
		return nil, err
	}
	if !in.Trusted {
		if err := s.policy.Authorize(svc, in.Principal); err != nil {
			return nil, err
		}
	}

	var from *domain.EmailAddress
	if in.From != "" {
		from, _, err = s.addrs.GetOrCreate(ctx, in.From)
		if err != nil {
			if !errors.Is(err, address.ErrInvalidAddress) {
				return nil, err
			}
			logger.Debug("ignoring invalid from address", "from", in.From)
			from = nil
		}
	}

	create := CreateInput{Service: svc, Principal: in.Principal, Subject: in.Subject, Body: in.Body, OverrideFrom: from}
	if create.ExtraTo, err = s.addrs.ConvertEmails(ctx, in.To); err != nil {
		return nil, err
	}
	if create.ExtraCC, err = s.addrs.ConvertEmails(ctx, in.CC); err != nil {
		return nil, err
	}
	if create.ExtraBCC, err = s.addrs.ConvertEmails(ctx, in.BCC); err != nil {
		return nil, err
	}

	msg, err := s.Create(ctx, create)
	if err != nil {
		return nil, err
	}
	return s.MarkReady(ctx, msg.ID)
}
