package client_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/impression/internal/client"
	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/testutil/harness"
	"github.com/ignite/impression/internal/testutil/memstore"
)

type captured struct {
	auth string
	form url.Values
}

func relayServer(t *testing.T, status int, got *[]captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		form, err := url.ParseQuery(string(raw))
		require.NoError(t, err)
		*got = append(*got, captured{auth: r.Header.Get("Authorization"), form: form})
		w.WriteHeader(status)
		_, _ = w.Write([]byte("{}"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteBackend_PostsToActiveServer(t *testing.T) {
	var got []captured
	srv := relayServer(t, http.StatusCreated, &got)

	store := memstore.New()
	settings := domain.DefaultSettings()
	servers := client.NewServers(store, settings)
	require.NoError(t, servers.Save(context.Background(), &domain.RemoteServer{
		Name: "primary", Target: srv.URL, Token: "secret", Active: true,
	}))

	backend := client.NewRemoteBackend(servers, settings, http.DefaultClient)
	ok, err := backend.SendMessage(context.Background(), client.Email{
		Subject: "disk full",
		Body:    "db1 at 99%",
		From:    "ops@example.com",
		To:      []string{"alerts", "a@example.com"},
		CC:      []string{"c@example.com"},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, got, 1)
	assert.Equal(t, "Token secret", got[0].auth)
	assert.Equal(t, "alerts", got[0].form.Get("service_name"))
	assert.Equal(t, []string{"a@example.com"}, got[0].form["to"])
	assert.Equal(t, []string{"c@example.com"}, got[0].form["cc"])
	assert.Equal(t, "disk full", got[0].form.Get("subject"))
}

func TestRemoteBackend_DefaultsWithoutActiveServer(t *testing.T) {
	var got []captured
	srv := relayServer(t, http.StatusOK, &got)

	settings := domain.DefaultSettings()
	settings.DefaultTarget = srv.URL
	settings.DefaultToken = "fallback"
	backend := client.NewRemoteBackend(client.NewServers(memstore.New(), settings), settings, http.DefaultClient)

	ok, err := backend.SendMessage(context.Background(), client.Email{To: []string{"x@example.com"}})
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "Token fallback", got[0].auth)
	assert.Equal(t, "default", got[0].form.Get("service_name"))
	assert.Equal(t, []string{"x@example.com"}, got[0].form["to"])
}

func TestRemoteBackend_RejectedIsNotAnError(t *testing.T) {
	var got []captured
	srv := relayServer(t, http.StatusForbidden, &got)

	settings := domain.DefaultSettings()
	settings.DefaultTarget = srv.URL
	backend := client.NewRemoteBackend(client.NewServers(nil, settings), settings, http.DefaultClient)

	n, err := backend.SendMessages(context.Background(), []client.Email{{Subject: "a"}, {Subject: "b"}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, got, 2)
}

func TestRemoteBackend_ServerErrorIsNotRetried(t *testing.T) {
	var got []captured
	srv := relayServer(t, http.StatusInternalServerError, &got)

	settings := domain.DefaultSettings()
	settings.DefaultTarget = srv.URL
	backend := client.NewRemoteBackend(client.NewServers(nil, settings), settings, nil)

	ok, err := backend.SendMessage(context.Background(), client.Email{Subject: "once"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, got, 1, "a 500 may mean the relay stored the message")
}

func TestRemoteBackend_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	settings := domain.DefaultSettings()
	settings.DefaultTarget = target
	backend := client.NewRemoteBackend(client.NewServers(nil, settings), settings, http.DefaultClient)

	ok, err := backend.SendMessage(context.Background(), client.Email{Subject: "x"})
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestServers_SingleActive(t *testing.T) {
	store := memstore.New()
	settings := domain.DefaultSettings()
	servers := client.NewServers(store, settings)
	ctx := context.Background()

	first := &domain.RemoteServer{Name: "one", Token: "t1", Active: true}
	require.NoError(t, servers.Save(ctx, first))
	assert.Equal(t, settings.DefaultTarget, first.Target)

	require.NoError(t, servers.Save(ctx, &domain.RemoteServer{Name: "two", Target: "http://two/", Token: "t2", Active: true}))

	active := 0
	for _, s := range store.RemoteServers() {
		if s.Active {
			active++
			assert.Equal(t, "two", s.Name)
		}
	}
	assert.Equal(t, 1, active)

	target, token := servers.TargetAndToken(ctx)
	assert.Equal(t, "http://two/", target)
	assert.Equal(t, "t2", token)
}

func TestServers_SaveWithoutRepository(t *testing.T) {
	servers := client.NewServers(nil, domain.DefaultSettings())
	assert.Error(t, servers.Save(context.Background(), &domain.RemoteServer{Name: "x"}))
}

func TestLocalBackend_SubmitsTrusted(t *testing.T) {
	h := harness.New()
	svc := h.Service("alerts", "ops")
	svc.AllowExtraTargetEmailAddresses = true
	backend := client.NewLocalBackend(h.Messages, h.Settings)

	msg, err := backend.SendMessage(context.Background(), client.Email{
		Subject: "hello",
		Body:    "world",
		To:      []string{"alerts", "someone@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, svc.ID, msg.ServiceID)
	assert.Equal(t, domain.StateSent, msg.State())

	outbox := h.Transport.Outbox()
	require.Len(t, outbox, 1)
	assert.Equal(t, []string{"someone@example.com"}, outbox[0].To)
}

func TestLocalBackend_DefaultService(t *testing.T) {
	h := harness.New()
	h.Service("default")
	backend := client.NewLocalBackend(h.Messages, h.Settings)

	n, err := backend.SendMessages(context.Background(), []client.Email{
		{Subject: "a", To: []string{"x@example.com"}},
		{Subject: "b", To: []string{"missing_service"}},
	})
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}
