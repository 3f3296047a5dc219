package hostfuncs

import (
	"context"
	"fmt"
	"sort"

	"github.com/gers-dev/gers-host/abi"
	"github.com/gers-dev/gers-host/domain/errors"
)

// Table is an immutable collection of capability bindings.
// Once created via NewTable, bindings cannot be added or removed, so the table is
// shared across worker goroutines without locking.
type Table struct {
	bindings  map[string]Binding
	namespace string
	names     []string // sorted for consistent iteration
}

// tableBuilder accumulates configuration during table construction.
type tableBuilder struct {
	bindings   map[string]Binding
	namespace  string
	middleware []Middleware
	errors     []error
}

// TableOption is a functional option for configuring a Table.
type TableOption func(*tableBuilder)

// NewTable creates an immutable Table with the given options.
// Returns an error if any capability name is registered twice.
//
// Example usage:
//
//	table, err := NewTable(
//	    WithMiddleware(PanicRecoveryMiddleware()),
//	    WithBundle(BuiltinBundle()),
//	)
func NewTable(opts ...TableOption) (*Table, error) {
	b := &tableBuilder{
		bindings:  make(map[string]Binding),
		namespace: abi.Namespace,
	}

	for _, opt := range opts {
		opt(b)
	}

	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}
	if b.namespace == "" {
		return nil, fmt.Errorf("capability namespace cannot be empty")
	}

	names := make([]string, 0, len(b.bindings))
	for name := range b.bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	wrapped := make(map[string]Binding, len(b.bindings))
	for name, binding := range b.bindings {
		h := binding.Handler
		for i := len(b.middleware) - 1; i >= 0; i-- {
			h = b.middleware[i](h)
		}
		binding.Handler = h
		wrapped[name] = binding
	}

	return &Table{
		bindings:  wrapped,
		namespace: b.namespace,
		names:     names,
	}, nil
}

// DefaultTable returns a table holding the built-in capabilities behind panic
// recovery.
func DefaultTable(opts ...BuiltinOption) (*Table, error) {
	return NewTable(
		WithMiddleware(PanicRecoveryMiddleware()),
		WithBundle(BuiltinBundle(opts...)),
	)
}

// Namespace returns the import module name the table is exposed under.
func (t *Table) Namespace() string {
	return t.namespace
}

// Lookup returns the binding for name.
func (t *Table) Lookup(name string) (Binding, bool) {
	b, ok := t.bindings[name]
	return b, ok
}

// Has returns true if a capability with the given name is registered.
func (t *Table) Has(name string) bool {
	_, ok := t.bindings[name]
	return ok
}

// Names returns a sorted list of all registered capability names.
func (t *Table) Names() []string {
	result := make([]string, len(t.names))
	copy(result, t.names)
	return result
}

// Invoke dispatches a capability call for the module described by call. A call to
// a capability the module was not granted yields a CapabilityError. Any handler
// failure is returned as an AbortError.
func (t *Table) Invoke(ctx context.Context, call *Call, name string, stack []uint64) error {
	if call == nil {
		return &errors.CapabilityError{Name: name}
	}
	binding, ok := t.bindings[name]
	if !ok || !call.Grants.Has(name) {
		return &errors.CapabilityError{ModuleID: call.ModuleID, Name: name}
	}
	if err := binding.Handler(withFunctionName(ctx, name), call, stack); err != nil {
		if errors.IsFatal(err) || errors.IsAbort(err) {
			return err
		}
		return &errors.AbortError{Capability: name, Err: err}
	}
	return nil
}

// addBinding registers a binding.
// Returns an error if the name is empty, already registered, or has no handler.
func (b *tableBuilder) addBinding(binding Binding) error {
	if binding.Name == "" {
		return fmt.Errorf("capability name cannot be empty")
	}
	if binding.Handler == nil {
		return fmt.Errorf("capability %q has no handler", binding.Name)
	}
	if _, exists := b.bindings[binding.Name]; exists {
		return fmt.Errorf("duplicate capability name: %q", binding.Name)
	}
	b.bindings[binding.Name] = binding
	return nil
}

// WithNamespace sets the import module name (default: "gers").
func WithNamespace(ns string) TableOption {
	return func(b *tableBuilder) {
		b.namespace = ns
	}
}

// WithBinding registers a single capability.
func WithBinding(binding Binding) TableOption {
	return func(b *tableBuilder) {
		if err := b.addBinding(binding); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithBundle registers every binding from a bundle.
func WithBundle(bundle Bundle) TableOption {
	return func(b *tableBuilder) {
		for _, binding := range bundle.Bindings() {
			if err := b.addBinding(binding); err != nil {
				b.errors = append(b.errors, err)
			}
		}
	}
}

// WithMiddleware adds middleware to the table.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) TableOption {
	return func(b *tableBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
