package template

import "errors"

// Sentinel errors for the template service layer.
var (
	ErrNotFound      = errors.New("template not found")
	ErrTemplateCycle = errors.New("template extends chain contains a cycle")
)
