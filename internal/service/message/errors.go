package message

import "errors"

// Sentinel errors for the message service layer.
var (
	ErrNotFound    = errors.New("message not found")
	ErrRateLimited = errors.New("rate limit has been reached")
	ErrNotReady    = errors.New("message is not ready to send")
)
