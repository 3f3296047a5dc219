package hostfuncs

import (
	"context"

	"github.com/gers-dev/gers-host/abi"
)

// Handler implements one capability. stack holds the parameters on entry and
// receives the results on return, one uint64 per value, as in the WebAssembly
// value stack. Returning an error aborts the guest call in progress.
type Handler func(ctx context.Context, call *Call, stack []uint64) error

// Binding ties a capability name to its fixed signature and host implementation.
type Binding struct {
	Handler   Handler
	Name      string
	Signature abi.Signature
}

// Middleware wraps a Handler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps outermost).
type Middleware func(next Handler) Handler
