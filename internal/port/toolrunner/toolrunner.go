// Package toolrunner defines the port for the external tool execution
// service that runs a named action with parameters.
package toolrunner

import "context"

// Runner invokes external tools. Idempotency is the tool's responsibility,
// not the engine's. The raw return value is classified by the engine in a
// single pass; callers must treat an array of error-marked entries as a
// potential failure even when err is nil.
type Runner interface {
	Invoke(ctx context.Context, action string, parameters map[string]any) (any, error)
}

// Func adapts a function to the Runner interface.
type Func func(ctx context.Context, action string, parameters map[string]any) (any, error)

// Invoke implements Runner.
func (f Func) Invoke(ctx context.Context, action string, parameters map[string]any) (any, error) {
	return f(ctx, action, parameters)
}
