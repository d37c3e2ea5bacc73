package ratelimit

import (
	"context"
	"time"

	"github.com/ignite/impression/internal/domain"
)

// CountFilter selects the service messages that count against a limit.
// Start and End are inclusive. At most one of User, GroupID and Anonymous
// is set; none means the total count.
type CountFilter struct {
	ServiceID string
	Start     time.Time
	End       time.Time
	User      *domain.PrincipalRef
	GroupID   string
	Anonymous bool
}

// Counter counts messages created for a service.
type Counter interface {
	CountMessages(ctx context.Context, f CountFilter) (int, error)
}
