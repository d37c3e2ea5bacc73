package policy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/service/policy"
	"github.com/ignite/impression/internal/testutil/harness"
)

func TestExtractBody(t *testing.T) {
	tests := []struct {
		name    string
		policy  domain.JSONBodyPolicy
		body    string
		want    map[string]any
		wantErr error
	}{
		{"forbid ignores json", domain.JSONBodyForbid, `{"a":1}`, nil, nil},
		{"permit object", domain.JSONBodyPermit, `{"a":"b"}`, map[string]any{"a": "b"}, nil},
		{"permit plain text", domain.JSONBodyPermit, "hello", nil, nil},
		{"permit non-object", domain.JSONBodyPermit, `[1,2]`, nil, nil},
		{"require object", domain.JSONBodyRequire, `{"a":"b"}`, map[string]any{"a": "b"}, nil},
		{"require plain text", domain.JSONBodyRequire, "hello", nil, policy.ErrJSONBodyRequired},
		{"require non-object", domain.JSONBodyRequire, `"str"`, nil, policy.ErrJSONBodyRequired},
		{"require null", domain.JSONBodyRequire, `null`, nil, policy.ErrJSONBodyRequired},
		{"unknown policy", "maybe", "", nil, policy.ErrUnknownJSONBodyPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := policy.ExtractBody(tt.policy, tt.body)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderContext_JSONKeysWin(t *testing.T) {
	svc := &domain.Service{JSONBodyPolicy: domain.JSONBodyPermit}
	ctx, err := policy.RenderContext(svc, "orig", `{"subject":"from json","x":1}`)
	require.NoError(t, err)
	assert.Equal(t, "from json", ctx["subject"])
	assert.Equal(t, `{"subject":"from json","x":1}`, ctx["body"])
	assert.Equal(t, float64(1), ctx["x"])

	svc.JSONBodyPolicy = domain.JSONBodyForbid
	ctx, err = policy.RenderContext(svc, "orig", `{"subject":"from json"}`)
	require.NoError(t, err)
	assert.Equal(t, "orig", ctx["subject"])
}

func TestCollectEmailAddresses(t *testing.T) {
	h := harness.New()
	ctx := context.Background()
	a := h.Store.AddAddress("a@example.com")
	b := h.Store.AddAddress("b@example.com")
	c := h.Store.AddAddress("c@example.com")

	team := h.Store.AddDistribution(&domain.Distribution{Name: "team", AddressIDs: []string{b.ID}})
	loop := h.Store.AddDistribution(&domain.Distribution{Name: "loop", AddressIDs: []string{c.ID}})
	team.ChildIDs = []string{loop.ID}
	loop.ChildIDs = []string{team.ID}

	svc := h.Service("ops")
	svc.To = domain.Targets{AddressIDs: []string{a.ID, b.ID}, DistributionIDs: []string{team.ID}}
	svc.BCC = domain.Targets{DistributionIDs: []string{loop.ID, team.ID}}

	to, cc, bcc, err := h.Policy.CollectEmailAddresses(ctx, svc)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, to.Strings())
	assert.Empty(t, cc)
	assert.Equal(t, []string{"b@example.com", "c@example.com"}, bcc.Strings())
}

func TestFilterUnsubscribed(t *testing.T) {
	h := harness.New()
	ctx := context.Background()
	svc := h.Service("digest")
	other := h.Service("other")

	global, err := h.Addresses.UnsubscribeAll(ctx, "global@example.com")
	require.NoError(t, err)
	mine, err := h.Addresses.Unsubscribe(ctx, "mine@example.com", svc.ID)
	require.NoError(t, err)
	theirs, err := h.Addresses.Unsubscribe(ctx, "theirs@example.com", other.ID)
	require.NoError(t, err)
	set := domain.NewAddressSet(global, mine, theirs)

	assert.Len(t, h.Policy.FilterUnsubscribed(svc, set), 3, "non-unsubscribable services keep everyone")

	svc.IsUnsubscribable = true
	assert.Equal(t, []string{"theirs@example.com"}, h.Policy.FilterUnsubscribed(svc, set).Strings())
}

func TestFromEmail(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.DefaultFromEmail = "Impression <noreply@example.com>"
	h := harness.New(harness.WithSettings(settings))
	ctx := context.Background()
	svc := h.Service("ops")
	override := h.Store.AddAddress("me@example.com")

	from, err := h.Policy.FromEmail(ctx, svc, override)
	require.NoError(t, err)
	assert.Equal(t, "noreply@example.com", from.Address)

	svc.AllowOverrideEmailFrom = true
	from, err = h.Policy.FromEmail(ctx, svc, override)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", from.Address)

	from, err = h.Policy.FromEmail(ctx, svc, nil)
	require.NoError(t, err)
	assert.Equal(t, "noreply@example.com", from.Address)
}

func TestAuthorize(t *testing.T) {
	h := harness.New()
	svc := h.Service("ops", "g1", "g2")

	assert.NoError(t, h.Policy.Authorize(svc, &domain.Principal{GroupIDs: []string{"g2"}}))
	assert.ErrorIs(t, h.Policy.Authorize(svc, &domain.Principal{GroupIDs: []string{"g3"}}), policy.ErrAccessDenied)
	assert.ErrorIs(t, h.Policy.Authorize(svc, nil), policy.ErrAccessDenied)
}

func TestAuthorizeGlobal(t *testing.T) {
	assert.ErrorIs(t, harness.New().Policy.AuthorizeGlobal(&domain.Principal{GroupIDs: []string{"g1"}}), policy.ErrAccessDenied)

	settings := domain.DefaultSettings()
	settings.SubscriptionAdminGroup = "postmasters"
	h := harness.New(harness.WithSettings(settings))
	assert.NoError(t, h.Policy.AuthorizeGlobal(&domain.Principal{GroupIDs: []string{"g1", "postmasters"}}))
	assert.ErrorIs(t, h.Policy.AuthorizeGlobal(&domain.Principal{GroupIDs: []string{"g1"}}), policy.ErrAccessDenied)
	assert.ErrorIs(t, h.Policy.AuthorizeGlobal(nil), policy.ErrAccessDenied)
}
