// Package transport delivers composed envelopes. Each implementation is
// one outbound channel; New selects one by name so the channel can be
// swapped through configuration.
//
// Implementations must be safe for concurrent use and report delivery
// through SendResult.Success. An error return also counts as a failure.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/impression/internal/domain"
)

// Transport sends a single envelope.
type Transport interface {
	Send(ctx context.Context, env *domain.Envelope) (*domain.SendResult, error)
}

// Backend names accepted by New.
const (
	BackendConsole = "console"
	BackendMemory  = "memory"
	BackendSMTP    = "smtp"
	BackendSES     = "ses"
	BackendRemote  = "remote"
)

// Options carries per-backend settings. Only the section matching the
// selected backend is read.
type Options struct {
	SMTP   SMTPConfig
	SES    SESConfig
	Remote RemoteSender
}

// New builds the transport named by backend.
func New(ctx context.Context, backend string, opts Options) (Transport, error) {
	switch backend {
	case "", BackendConsole:
		return NewConsole(nil), nil
	case BackendMemory:
		return NewMemory(), nil
	case BackendSMTP:
		return NewSMTP(opts.SMTP)
	case BackendSES:
		return NewSES(ctx, opts.SES)
	case BackendRemote:
		if opts.Remote == nil {
			return nil, fmt.Errorf("remote transport requires a relay backend")
		}
		return NewRemote(opts.Remote), nil
	}
	return nil, fmt.Errorf("unknown email backend %q", backend)
}

func failed(name string, err error) *domain.SendResult {
	return &domain.SendResult{Success: false, Transport: name, Error: err.Error()}
}

func succeeded(name, messageID string) *domain.SendResult {
	return &domain.SendResult{Success: true, Transport: name, MessageID: messageID, SentAt: time.Now()}
}
