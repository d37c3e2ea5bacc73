package distribution

import "errors"

// Sentinel errors for the distribution service layer.
var (
	ErrNotFound = errors.New("distribution not found")
)
