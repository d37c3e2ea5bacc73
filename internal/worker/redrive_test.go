package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/pkg/distlock"
	"github.com/ignite/impression/internal/service/message"
	"github.com/ignite/impression/internal/testutil/harness"
	"github.com/ignite/impression/internal/worker"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client
}

// readyUnsent stores a message that was marked ready without the send
// trigger firing, as after a crash between commit and send.
func readyUnsent(t *testing.T, h *harness.Harness, svc *domain.Service) *domain.Message {
	t.Helper()
	ctx := context.Background()
	msg, err := h.Messages.Create(ctx, message.CreateInput{Service: svc, Subject: "s", Body: "b"})
	require.NoError(t, err)
	require.NoError(t, h.Store.Messages().MarkReady(ctx, msg.ID))
	return msg
}

func alertsService(h *harness.Harness) *domain.Service {
	svc := h.Service("alerts")
	rcpt := h.Store.AddAddress("oncall@example.com")
	svc.To = domain.Targets{AddressIDs: []string{rcpt.ID}}
	return svc
}

func TestRedrive_SendsStrandedMessages(t *testing.T) {
	h := harness.New()
	svc := alertsService(h)
	first := readyUnsent(t, h, svc)
	second := readyUnsent(t, h, svc)

	lock := distlock.NewRedisLock(setupTestRedis(t), worker.RedriveLockKey, time.Minute)
	r := worker.NewRedrive(h.Messages, lock, worker.RedriveConfig{})

	stats, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, worker.RedriveStats{Candidates: 2, Sent: 2}, stats)
	assert.Equal(t, 2, h.Transport.Calls())

	for _, id := range []string{first.ID, second.ID} {
		msg, err := h.Messages.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.StateSent, msg.State())
	}

	stats, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Candidates)
	assert.Equal(t, 2, h.Transport.Calls())
}

func TestRedrive_FailedOnlyWithRetryFailed(t *testing.T) {
	h := harness.New()
	svc := alertsService(h)
	readyUnsent(t, h, svc)
	client := setupTestRedis(t)

	h.Transport.FailWith(errors.New("connection refused"))
	plain := worker.NewRedrive(h.Messages, distlock.NewRedisLock(client, worker.RedriveLockKey, time.Minute), worker.RedriveConfig{})
	stats, err := plain.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	stats, err = plain.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Candidates, "failed messages are left alone by default")

	h.Transport.FailWith(nil)
	h.Clock.Advance(time.Minute)
	retrying := worker.NewRedrive(h.Messages, distlock.NewRedisLock(client, worker.RedriveLockKey, time.Minute),
		worker.RedriveConfig{RetryFailed: true})
	stats, err = retrying.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, worker.RedriveStats{Candidates: 1, Sent: 1}, stats)
}

func TestRedrive_SkipsWhenLockHeld(t *testing.T) {
	h := harness.New()
	readyUnsent(t, h, alertsService(h))
	client := setupTestRedis(t)

	holder := distlock.NewRedisLock(client, worker.RedriveLockKey, time.Minute)
	ok, err := holder.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	r := worker.NewRedrive(h.Messages, distlock.NewRedisLock(client, worker.RedriveLockKey, time.Minute), worker.RedriveConfig{})
	stats, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Skipped)
	assert.Zero(t, h.Transport.Calls())

	require.NoError(t, holder.Release(context.Background()))
	stats, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
}

func TestRedrive_StartStopsOnCancel(t *testing.T) {
	h := harness.New()
	readyUnsent(t, h, alertsService(h))
	lock := distlock.NewRedisLock(setupTestRedis(t), worker.RedriveLockKey, time.Minute)
	r := worker.NewRedrive(h.Messages, lock, worker.RedriveConfig{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return h.Transport.Calls() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
