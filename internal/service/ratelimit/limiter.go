package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/impression/internal/domain"
)

// Timeframe returns the [start, end] window a limit is evaluated over,
// with end = now.
func Timeframe(rl *domain.RateLimit, now time.Time) (time.Time, time.Time, error) {
	switch rl.Type {
	case domain.RollingWindowType:
		return now.Add(-rl.RollingWindow), now, nil
	case domain.BlockPeriodType:
		hour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		switch rl.BlockPeriod {
		case domain.PeriodHour:
			return hour, now, nil
		case domain.PeriodDay:
			return day, now, nil
		case domain.PeriodWeek:
			return day.AddDate(0, 0, -isoWeekday(now)), now, nil
		case domain.PeriodMonth:
			return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), now, nil
		}
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: type=%d block_period=%d", ErrUnknownRateLimitType, rl.Type, rl.BlockPeriod)
}

// isoWeekday numbers Monday 1 through Sunday 7.
func isoWeekday(t time.Time) int {
	if wd := int(t.Weekday()); wd != 0 {
		return wd
	}
	return 7
}

// Limiter checks services against their rate limits.
type Limiter struct {
	counter Counter
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a limiter that counts through counter.
func NewLimiter(counter Counter, opts ...Option) *Limiter {
	l := &Limiter{counter: counter, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Check reports whether svc may accept one more message from principal.
// A service without a rate limit always admits. principal may be nil.
func (l *Limiter) Check(ctx context.Context, svc *domain.Service, principal *domain.Principal) (bool, error) {
	rl := svc.RateLimit
	if rl == nil {
		return true, nil
	}
	start, end, err := Timeframe(rl, l.now())
	if err != nil {
		return false, err
	}
	base := CountFilter{ServiceID: svc.ID, Start: start, End: end}

	var count int
	switch rl.Grouping {
	case domain.GroupingTotal:
		count, err = l.counter.CountMessages(ctx, base)
	case domain.GroupingPerUser:
		f := base
		if principal != nil {
			ref := principal.Ref()
			f.User = &ref
		} else {
			f.Anonymous = true
		}
		count, err = l.counter.CountMessages(ctx, f)
	case domain.GroupingPerGroup:
		count, err = l.countPerGroup(ctx, base, principal.SharedGroups(svc.AllowedGroupIDs))
	default:
		return false, fmt.Errorf("%w: %d (rate limit %s)", ErrUnknownGrouping, int(rl.Grouping), rl.ID)
	}
	if err != nil {
		return false, fmt.Errorf("count messages: %w", err)
	}
	return count < rl.Quantity, nil
}

func (l *Limiter) countPerGroup(ctx context.Context, base CountFilter, groups []string) (int, error) {
	if len(groups) == 0 {
		return l.counter.CountMessages(ctx, base)
	}
	highest := 0
	for _, g := range groups {
		f := base
		f.GroupID = g
		n, err := l.counter.CountMessages(ctx, f)
		if err != nil {
			return 0, err
		}
		if n > highest {
			highest = n
		}
	}
	return highest, nil
}
