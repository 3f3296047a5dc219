package hostfuncs

import (
	"context"
)

// contextKey is a private type for context keys.
type contextKey struct {
	name string
}

var (
	callKey     = &contextKey{name: "call"}
	functionKey = &contextKey{name: "function"}
)

// WithCall attaches the per-call environment to ctx. The scheduler passes the
// resulting context to the guest call so capability handlers can find it.
func WithCall(ctx context.Context, call *Call) context.Context {
	return context.WithValue(ctx, callKey, call)
}

// CallFrom retrieves the per-call environment from ctx.
func CallFrom(ctx context.Context) (*Call, bool) {
	call, ok := ctx.Value(callKey).(*Call)
	return call, ok && call != nil
}

// withFunctionName records the capability being invoked for middleware.
func withFunctionName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, functionKey, name)
}

// FunctionName returns the capability being invoked, or "" outside a handler.
func FunctionName(ctx context.Context) string {
	name, _ := ctx.Value(functionKey).(string)
	return name
}
