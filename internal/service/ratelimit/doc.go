// Package ratelimit decides whether a service may accept another message.
//
// Limits are evaluated against messages already stored for the service
// inside a timeframe: either a rolling window ending now, or the current
// calendar hour, day, week (starting Sunday) or month. Counting is total,
// per submitting principal, or per group, where the per-group count is the
// maximum over the principal's groups that the service allows.
package ratelimit
