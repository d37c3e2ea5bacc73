package transport

import (
	"context"
	"fmt"

	"github.com/ignite/impression/internal/client"
	"github.com/ignite/impression/internal/domain"
)

// RemoteSender is satisfied by client.RemoteBackend.
type RemoteSender interface {
	SendMessage(ctx context.Context, e client.Email) (bool, error)
}

// Remote hands envelopes to another impression server. The remote server
// renders and delivers again under its own default service.
type Remote struct {
	relay RemoteSender
}

// NewRemote creates a relay transport.
func NewRemote(relay RemoteSender) *Remote { return &Remote{relay: relay} }

func (r *Remote) Send(ctx context.Context, env *domain.Envelope) (*domain.SendResult, error) {
	ok, err := r.relay.SendMessage(ctx, client.Email{
		Subject: env.Subject,
		Body:    env.BodyPlaintext,
		From:    env.From,
		To:      env.To,
		CC:      env.CC,
		BCC:     env.BCC,
	})
	if err != nil {
		return failed(BackendRemote, err), nil
	}
	if !ok {
		return failed(BackendRemote, fmt.Errorf("remote server rejected message")), nil
	}
	return succeeded(BackendRemote, env.MessageID), nil
}
