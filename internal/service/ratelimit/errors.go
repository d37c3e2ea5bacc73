package ratelimit

import "errors"

// Sentinel errors for the rate limiter. All of them indicate a
// misconfigured rate limit row rather than a caller mistake.
var (
	ErrUnknownGrouping      = errors.New("rate limit grouping not known")
	ErrUnknownRateLimitType = errors.New("rate limit type or block period not known")
)
