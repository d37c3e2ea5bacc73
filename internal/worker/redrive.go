package worker

import (
	"context"
	"log"
	"time"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/pkg/distlock"
	"github.com/ignite/impression/internal/pkg/logger"
)

// =============================================================================
// RE-DRIVE SWEEPER: Delivers Messages The Save Trigger Missed
// =============================================================================
// A message is normally sent right after it is marked ready. If the process
// dies between the commit and the send, or the send was never triggered, the
// message stays ready and unsent. The sweeper periodically lists those
// messages and pushes each through the regular locked send path.
//
// Only one sweeper walks the list at a time (distlock). Each message is
// still sent under its own row lock, so an overlapping sweep or API call
// cannot deliver it twice.

const (
	// DefaultRedriveInterval is how often the sweeper scans.
	DefaultRedriveInterval = time.Minute

	// DefaultRedriveLockTTL bounds how long a crashed sweeper keeps the lock.
	DefaultRedriveLockTTL = 5 * time.Minute

	// RedriveLockKey names the sweeper lock.
	RedriveLockKey = "impression:redrive"
)

// Sender is the part of the message service the sweeper drives.
type Sender interface {
	PendingIDs(ctx context.Context, includeFailed bool) ([]string, error)
	Send(ctx context.Context, id string) (*domain.Message, error)
	Retry(ctx context.Context, id string) (*domain.Message, error)
}

// RedriveConfig tunes the sweeper.
type RedriveConfig struct {
	Interval    time.Duration
	RetryFailed bool // also re-attempt messages whose last attempt failed
}

// RedriveStats summarizes one pass.
type RedriveStats struct {
	Skipped    bool // another sweeper held the lock
	Candidates int
	Sent       int
	Failed     int
	Errors     int
}

// Redrive periodically re-sends ready, unsent messages.
type Redrive struct {
	messages    Sender
	lock        distlock.DistLock
	interval    time.Duration
	retryFailed bool
}

// NewRedrive creates a sweeper. A zero interval uses DefaultRedriveInterval.
func NewRedrive(messages Sender, lock distlock.DistLock, cfg RedriveConfig) *Redrive {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRedriveInterval
	}
	return &Redrive{
		messages:    messages,
		lock:        lock,
		interval:    cfg.Interval,
		retryFailed: cfg.RetryFailed,
	}
}

// Start runs a pass immediately and then on every tick. It blocks until ctx
// is cancelled.
func (r *Redrive) Start(ctx context.Context) {
	log.Printf("[Redrive] Starting (interval=%s, retry_failed=%v)", r.interval, r.retryFailed)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.runLogged(ctx)
		select {
		case <-ctx.Done():
			log.Println("[Redrive] Stopping")
			return
		case <-ticker.C:
		}
	}
}

func (r *Redrive) runLogged(ctx context.Context) {
	stats, err := r.RunOnce(ctx)
	if err != nil {
		log.Printf("[Redrive] pass error: %v", err)
		return
	}
	if stats.Candidates > 0 {
		log.Printf("[Redrive] pass done: candidates=%d sent=%d failed=%d errors=%d",
			stats.Candidates, stats.Sent, stats.Failed, stats.Errors)
	}
}

// RunOnce performs a single sweep.
func (r *Redrive) RunOnce(ctx context.Context) (RedriveStats, error) {
	var stats RedriveStats

	ok, err := r.lock.Acquire(ctx)
	if err != nil {
		return stats, err
	}
	if !ok {
		logger.Debug("redrive lock held elsewhere, skipping pass")
		stats.Skipped = true
		return stats, nil
	}
	defer func() {
		if err := r.lock.Release(context.Background()); err != nil {
			logger.Warn("redrive lock release failed", "error", err)
		}
	}()

	ids, err := r.messages.PendingIDs(ctx, r.retryFailed)
	if err != nil {
		return stats, err
	}
	stats.Candidates = len(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		var msg *domain.Message
		if r.retryFailed {
			msg, err = r.messages.Retry(ctx, id)
		} else {
			msg, err = r.messages.Send(ctx, id)
		}
		switch {
		case err != nil:
			stats.Errors++
			logger.Warn("redrive send error", "message_id", id, "error", err)
		case msg.Sent != nil:
			stats.Sent++
		default:
			stats.Failed++
			logger.Info("redrive attempt failed", "message_id", id)
		}
	}
	return stats, nil
}
