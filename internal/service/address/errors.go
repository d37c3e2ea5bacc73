package address

import "errors"

// Sentinel errors for the address service layer.
var (
	ErrNotFound       = errors.New("email address not found")
	ErrInvalidAddress = errors.New("invalid email address")
)

func isInvalid(err error) bool { return errors.Is(err, ErrInvalidAddress) }
