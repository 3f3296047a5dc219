package hostfuncs

import (
	"context"
	"fmt"
)

// PanicRecoveryMiddleware returns a middleware that turns a panicking handler into
// an error. The guest call is aborted, but the panic is not mistaken for a guest
// trap.
func PanicRecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, call *Call, stack []uint64) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("capability %s panicked: %v", FunctionName(ctx), r)
				}
			}()
			return next(ctx, call, stack)
		}
	}
}
