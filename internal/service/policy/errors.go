package policy

import "errors"

// Sentinel errors for the policy engine.
var (
	ErrServiceNotFound       = errors.New("target service not found")
	ErrAccessDenied          = errors.New("principal is not allowed to use this service")
	ErrJSONBodyRequired      = errors.New("JSON body required")
	ErrUnknownJSONBodyPolicy = errors.New("json body policy not known")
)
