// Package policy applies a service's configuration to a message: who may
// use the service, which recipients it expands to, which of them have opted
// out, which sender is used and how the body feeds the template context.
//
// The engine holds no mutable state; all defaults come from the Settings
// passed to NewEngine.
package policy
