package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/pkg/httpretry"
	"github.com/ignite/impression/internal/pkg/logger"
)

// RemoteBackend relays messages to a remote impression server.
type RemoteBackend struct {
	servers  *Servers
	settings domain.Settings
	http     httpretry.HTTPDoer
}

// NewRemoteBackend creates a relay backend. A nil doer gets a RetryClient
// that only retries responses the relay cannot have acted on (429 and 503),
// so a stored-then-failed POST is never delivered twice.
func NewRemoteBackend(servers *Servers, settings domain.Settings, doer httpretry.HTTPDoer) *RemoteBackend {
	if doer == nil {
		doer = httpretry.NewRetryClient(nil, 2,
			httpretry.WithRetryableStatuses(http.StatusTooManyRequests, http.StatusServiceUnavailable))
	}
	return &RemoteBackend{servers: servers, settings: settings, http: doer}
}

// Payload builds the form body posted for e.
func (b *RemoteBackend) Payload(e Email) url.Values {
	service, to := route(e, b.settings.DefaultService)
	form := url.Values{}
	form.Set("service_name", service)
	form.Set("subject", e.Subject)
	form.Set("body", e.Body)
	form.Set("from", e.From)
	for _, addr := range to {
		form.Add("to", addr)
	}
	for _, addr := range e.CC {
		form.Add("cc", addr)
	}
	for _, addr := range e.BCC {
		form.Add("bcc", addr)
	}
	return form
}

// SendMessage posts one message. ok is true for any 2xx response.
func (b *RemoteBackend) SendMessage(ctx context.Context, e Email) (bool, error) {
	target, token := b.servers.TargetAndToken(ctx)
	body := b.Payload(e).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build relay request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil }
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token "+token)

	resp, err := b.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("relay to %s: %w", target, err)
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("relay rejected message", "target", target, "status", resp.StatusCode, "response", string(snippet))
		return false, nil
	}
	logger.Debug("relay accepted message", "target", target, "status", resp.StatusCode)
	return true, nil
}

// SendMessages relays each message and returns how many were accepted.
// Transport errors stop the batch.
func (b *RemoteBackend) SendMessages(ctx context.Context, emails []Email) (int, error) {
	count := 0
	for _, e := range emails {
		ok, err := b.SendMessage(ctx, e)
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}
