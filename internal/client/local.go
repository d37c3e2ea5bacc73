package client

import (
	"context"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/service/message"
)

// LocalBackend submits messages straight into the local message service.
// It acts as a trusted caller: group authorization is skipped.
type LocalBackend struct {
	messages *message.Service
	settings domain.Settings
}

// NewLocalBackend creates a local backend.
func NewLocalBackend(messages *message.Service, settings domain.Settings) *LocalBackend {
	return &LocalBackend{messages: messages, settings: settings}
}

// SendMessage stores e as a ready message and triggers its delivery.
func (b *LocalBackend) SendMessage(ctx context.Context, e Email) (*domain.Message, error) {
	service, to := route(e, b.settings.DefaultService)
	return b.messages.Submit(ctx, message.SubmitInput{
		ServiceName: service,
		Trusted:     true,
		Subject:     e.Subject,
		Body:        e.Body,
		From:        e.From,
		To:          to,
		CC:          e.CC,
		BCC:         e.BCC,
	})
}

// SendMessages submits each message and returns how many were stored.
// The first error stops the batch.
func (b *LocalBackend) SendMessages(ctx context.Context, emails []Email) (int, error) {
	count := 0
	for _, e := range emails {
		if _, err := b.SendMessage(ctx, e); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
