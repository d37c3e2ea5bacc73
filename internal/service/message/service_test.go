package message_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/service/message"
	"github.com/ignite/impression/internal/service/policy"
	"github.com/ignite/impression/internal/testutil/harness"
)

func setup(t *testing.T) (*harness.Harness, *domain.Service, *domain.Principal) {
	t.Helper()
	h := harness.New()
	p := h.Principal("ci", "tok", "ops")
	svc := h.Service("alerts", "ops")
	svc.AllowExtraTargetEmailAddresses = true
	svc.To.AddressIDs = []string{h.Store.AddAddress("oncall@example.com").ID}
	return h, svc, p
}

func submit(t *testing.T, h *harness.Harness, p *domain.Principal, to ...string) *domain.Message {
	t.Helper()
	msg, err := h.Messages.Submit(context.Background(), message.SubmitInput{
		ServiceName: "alerts",
		Principal:   p,
		Subject:     "Disk",
		Body:        "Disk almost full",
		To:          to,
	})
	require.NoError(t, err)
	return msg
}

func TestSubmit_SendsOnce(t *testing.T) {
	h, _, p := setup(t)
	msg := submit(t, h, p, "dev@example.com")

	assert.Equal(t, domain.StateSent, msg.State())
	require.NotNil(t, msg.Sent)
	require.NotNil(t, msg.LastAttempt)
	assert.Equal(t, "Disk", msg.Final.Subject)
	assert.Equal(t, "Disk almost full", msg.Final.BodyPlaintext)
	assert.Equal(t, "webmaster@localhost", msg.Final.From)
	assert.Equal(t, []string{"dev@example.com", "oncall@example.com"}, msg.Final.To)

	require.Len(t, h.Transport.Outbox(), 1)

	// Saving again never triggers another transport call.
	again, err := h.Messages.MarkReady(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.Sent, again.Sent)
	_, err = h.Messages.Send(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Transport.Calls())
}

func TestSubmit_ConcurrentSendsDeliverOnce(t *testing.T) {
	h, svc, p := setup(t)
	msg, err := h.Messages.Create(context.Background(), message.CreateInput{Service: svc, Principal: p, Subject: "s", Body: "b"})
	require.NoError(t, err)
	require.NoError(t, h.Store.Messages().MarkReady(context.Background(), msg.ID))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.Messages.Send(context.Background(), msg.ID)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, h.Transport.Calls())
}

func TestSend_NotReady(t *testing.T) {
	h, svc, p := setup(t)
	msg, err := h.Messages.Create(context.Background(), message.CreateInput{Service: svc, Principal: p})
	require.NoError(t, err)
	assert.Equal(t, domain.StateCreated, msg.State())

	_, err = h.Messages.Send(context.Background(), msg.ID)
	assert.ErrorIs(t, err, message.ErrNotReady)
	assert.Equal(t, 0, h.Transport.Calls())
}

func TestSend_TransportFailureRecordsAttempt(t *testing.T) {
	h, _, p := setup(t)
	h.Transport.FailWith(errors.New("relay down"))

	msg := submit(t, h, p)
	assert.Equal(t, domain.StateFailed, msg.State())
	assert.Nil(t, msg.Sent)
	require.NotNil(t, msg.LastAttempt)
	assert.Empty(t, msg.Final.Subject)
	assert.Empty(t, msg.Final.To)

	// A failed message is not retried implicitly.
	_, err := h.Messages.Send(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Transport.Calls())

	// Explicit retry after the relay recovers.
	h.Transport.FailWith(nil)
	h.Clock.Advance(time.Minute)
	retried, err := h.Messages.Retry(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSent, retried.State())
	assert.True(t, retried.LastAttempt.After(*msg.LastAttempt))
	assert.Equal(t, 2, h.Transport.Calls())

	// Retry of a sent message is a no-op.
	_, err = h.Messages.Retry(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Transport.Calls())
}

func TestSend_NoRecipientsIsFailedAttempt(t *testing.T) {
	h := harness.New()
	p := h.Principal("ci", "tok", "ops")
	h.Service("empty", "ops")

	msg, err := h.Messages.Submit(context.Background(), message.SubmitInput{ServiceName: "empty", Principal: p, Subject: "s"})
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, msg.State())
	assert.Equal(t, 0, h.Transport.Calls())
}

func TestCreate_RateLimitBoundary(t *testing.T) {
	h, svc, p := setup(t)
	svc.RateLimit = &domain.RateLimit{ID: "rl", Quantity: 2, Type: domain.RollingWindowType, RollingWindow: time.Hour}

	submit(t, h, p)
	submit(t, h, p)

	_, err := h.Messages.Submit(context.Background(), message.SubmitInput{ServiceName: "alerts", Principal: p})
	assert.ErrorIs(t, err, message.ErrRateLimited)
	assert.EqualError(t, err, "rate limit has been reached: 2 messages for a rolling window of: 0 days, 1 hours, 0 minutes, 0 seconds")
	assert.Len(t, h.Store.AllMessages(), 2, "no row is created for a throttled message")

	// The window rolls forward.
	h.Clock.Advance(61 * time.Minute)
	submit(t, h, p)
}

func TestCreate_JSONBodyRequired(t *testing.T) {
	h, svc, p := setup(t)
	svc.JSONBodyPolicy = domain.JSONBodyRequire

	_, err := h.Messages.Create(context.Background(), message.CreateInput{Service: svc, Principal: p, Body: "not json"})
	assert.ErrorIs(t, err, policy.ErrJSONBodyRequired)
	assert.Empty(t, h.Store.AllMessages())

	msg, err := h.Messages.Create(context.Background(), message.CreateInput{Service: svc, Principal: p, Body: `{"host":"db1"}`})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
}

func TestCreate_UnknownJSONPolicyFailsLoudly(t *testing.T) {
	h, svc, p := setup(t)
	svc.JSONBodyPolicy = "sometimes"
	_, err := h.Messages.Create(context.Background(), message.CreateInput{Service: svc, Principal: p})
	assert.ErrorIs(t, err, policy.ErrUnknownJSONBodyPolicy)
}

func TestSubmit_RendersTemplateWithJSONContext(t *testing.T) {
	h, svc, p := setup(t)
	tpl := h.Store.AddTemplate(&domain.Template{
		Name:                  "Alert",
		Subject:               "[{{ host }}] {{ subject }}",
		BodyHTML:              "<p>{{ host }} at {{ pct }}%</p>",
		AutogeneratePlaintext: true,
	})
	svc.TemplateID = &tpl.ID

	msg, err := h.Messages.Submit(context.Background(), message.SubmitInput{
		ServiceName: "alerts",
		Principal:   p,
		Subject:     "Disk",
		Body:        `{"host":"db1","pct":91}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "[db1] Disk", msg.Final.Subject)
	assert.Equal(t, "<p>db1 at 91%</p>", msg.Final.BodyHTML)
	assert.Equal(t, "db1 at 91%", msg.Final.BodyPlaintext)
}

func TestSubmit_TemplateCycleIsFailedAttempt(t *testing.T) {
	h, svc, p := setup(t)
	a := h.Store.AddTemplate(&domain.Template{Name: "A"})
	b := h.Store.AddTemplate(&domain.Template{Name: "B", ExtendsID: &a.ID})
	a.ExtendsID = &b.ID
	svc.TemplateID = &a.ID

	msg := submit(t, h, p)
	assert.Equal(t, domain.StateFailed, msg.State())
	assert.Equal(t, 0, h.Transport.Calls())
}

func TestSubmit_UnsubscribedRecipientsFiltered(t *testing.T) {
	h, svc, p := setup(t)
	svc.IsUnsubscribable = true
	ctx := context.Background()

	_, err := h.Addresses.UnsubscribeAll(ctx, "gone@example.com")
	require.NoError(t, err)
	_, err = h.Addresses.Unsubscribe(ctx, "muted@example.com", svc.ID)
	require.NoError(t, err)

	msg := submit(t, h, p, "gone@example.com", "muted@example.com", "kept@example.com")
	assert.Equal(t, []string{"kept@example.com", "oncall@example.com"}, msg.Final.To)
}

func TestSubmit_ExtrasIgnoredWhenServiceForbidsThem(t *testing.T) {
	h, svc, p := setup(t)
	svc.AllowExtraTargetEmailAddresses = false

	msg := submit(t, h, p, "extra@example.com")
	assert.Equal(t, []string{"oncall@example.com"}, msg.Final.To)
}

func TestSubmit_FromOverride(t *testing.T) {
	h, svc, p := setup(t)
	ctx := context.Background()
	in := message.SubmitInput{ServiceName: "alerts", Principal: p, From: "Bot <Bot@Example.com>"}

	msg, err := h.Messages.Submit(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "webmaster@localhost", msg.Final.From, "override ignored unless allowed")

	svc.AllowOverrideEmailFrom = true
	msg, err = h.Messages.Submit(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "bot@example.com", msg.Final.From)

	svc.AllowOverrideEmailFrom = false
	svc.FromAddress = h.Store.AddAddress("alerts@example.com")
	msg, err = h.Messages.Submit(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "alerts@example.com", msg.Final.From)
}

func TestSubmit_Authorization(t *testing.T) {
	h, _, _ := setup(t)
	outsider := h.Principal("outsider", "tok2", "marketing")

	_, err := h.Messages.Submit(context.Background(), message.SubmitInput{ServiceName: "alerts", Principal: outsider})
	assert.ErrorIs(t, err, policy.ErrAccessDenied)

	_, err = h.Messages.Submit(context.Background(), message.SubmitInput{ServiceName: "alerts"})
	assert.ErrorIs(t, err, policy.ErrAccessDenied)

	msg, err := h.Messages.Submit(context.Background(), message.SubmitInput{ServiceName: "alerts", Trusted: true})
	require.NoError(t, err)
	assert.True(t, msg.Principal.IsZero())
}

func TestSubmit_UnknownOrInactiveService(t *testing.T) {
	h, svc, p := setup(t)
	_, err := h.Messages.Submit(context.Background(), message.SubmitInput{ServiceName: "nope", Principal: p})
	assert.ErrorIs(t, err, policy.ErrServiceNotFound)

	_, err = h.Messages.Submit(context.Background(), message.SubmitInput{ServiceName: "Bad Name!", Principal: p})
	assert.ErrorIs(t, err, policy.ErrServiceNotFound)

	svc.IsActive = false
	_, err = h.Messages.Submit(context.Background(), message.SubmitInput{ServiceName: "alerts", Principal: p})
	assert.ErrorIs(t, err, policy.ErrServiceNotFound)
}

func TestPendingIDs(t *testing.T) {
	h, svc, p := setup(t)
	ctx := context.Background()

	created, err := h.Messages.Create(ctx, message.CreateInput{Service: svc, Principal: p})
	require.NoError(t, err)
	ready, err := h.Messages.Create(ctx, message.CreateInput{Service: svc, Principal: p})
	require.NoError(t, err)
	require.NoError(t, h.Store.Messages().MarkReady(ctx, ready.ID))

	h.Transport.FailWith(errors.New("down"))
	failed := submit(t, h, p)

	ids, err := h.Messages.PendingIDs(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{ready.ID}, ids)

	ids, err = h.Messages.PendingIDs(ctx, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ready.ID, failed.ID}, ids)
	assert.NotContains(t, ids, created.ID)
}

type recordingArchiver struct {
	mu   sync.Mutex
	ids  []string
	fail error
}

func (r *recordingArchiver) Archive(_ context.Context, msg *domain.Message, _ *domain.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, msg.ID)
	return r.fail
}

func TestArchiverCalledAfterSuccessOnly(t *testing.T) {
	arch := &recordingArchiver{fail: errors.New("bucket missing")}
	h := harness.New(harness.WithArchiver(arch))
	p := h.Principal("ci", "tok", "ops")
	svc := h.Service("alerts", "ops")
	svc.To.AddressIDs = []string{h.Store.AddAddress("oncall@example.com").ID}

	msg := submit(t, h, p)
	assert.Equal(t, domain.StateSent, msg.State(), "archive errors never fail a send")

	h.Transport.FailWith(errors.New("down"))
	submit(t, h, p)
	assert.Equal(t, []string{msg.ID}, arch.ids)
}
