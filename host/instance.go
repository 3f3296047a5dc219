package host

import (
	"context"
	stdErrors "errors"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/tetratelabs/wazero/api"

	"github.com/gers-dev/gers-host/abi"
	"github.com/gers-dev/gers-host/domain/entities"
	"github.com/gers-dev/gers-host/domain/errors"
	"github.com/gers-dev/gers-host/domain/ports"
	"github.com/gers-dev/gers-host/hostfuncs"
	"github.com/gers-dev/gers-host/marshal"
)

// Instance is one loaded module: a wazero module instance with its own linear
// memory, resolved export handles and immutable grant set. Calls into an instance
// must not overlap.
type Instance struct {
	module  api.Module
	memory  api.Memory
	grants  entities.GrantSet
	version *semver.Version
	release func(id string)
	id      string

	update      api.Function
	bumpInit    api.Function
	bumpReset   api.Function
	eventAlloc  api.Function
	eventUpdate api.Function

	faulted   bool
	closeOnce sync.Once
	closeErr  error
}

func newInstance(id string, mod api.Module, grants entities.GrantSet, version *semver.Version, release func(string)) *Instance {
	return &Instance{
		module:      mod,
		memory:      mod.ExportedMemory(abi.MemoryExport),
		grants:      grants,
		version:     version,
		release:     release,
		id:          id,
		update:      mod.ExportedFunction(abi.UpdateExport),
		bumpInit:    mod.ExportedFunction(abi.BumpInitExport),
		bumpReset:   mod.ExportedFunction(abi.BumpResetExport),
		eventAlloc:  mod.ExportedFunction(abi.EventAllocExport),
		eventUpdate: mod.ExportedFunction(abi.EventUpdateExport),
	}
}

// ID returns the module id.
func (i *Instance) ID() string {
	return i.id
}

// Grants returns the capabilities the module imports, all of which were granted.
func (i *Instance) Grants() entities.GrantSet {
	return i.grants
}

// ABIVersion returns the ABI version the module declared, or the host's own when
// it declared none.
func (i *Instance) ABIVersion() string {
	return i.version.String()
}

// Memory returns the module's exported linear memory.
func (i *Instance) Memory() ports.LinearMemory {
	return i.memory
}

// ReceivesEvents reports whether the module exports the event delivery hooks.
func (i *Instance) ReceivesEvents() bool {
	return i.eventAlloc != nil && i.eventUpdate != nil
}

// Faulted reports whether the instance trapped and must not be called again.
func (i *Instance) Faulted() bool {
	return i.faulted
}

// Fault marks the instance as permanently excluded from scheduling.
func (i *Instance) Fault() {
	i.faulted = true
}

// NewCall builds the per-call environment for this instance.
func (i *Instance) NewCall(tick uint64, dt float32, outbox *hostfuncs.Outbox) *hostfuncs.Call {
	return &hostfuncs.Call{
		Memory:    i.memory,
		Grants:    i.grants,
		Outbox:    outbox,
		ModuleID:  i.id,
		Tick:      tick,
		DeltaTime: dt,
	}
}

// Update calls the per-tick entrypoint.
func (i *Instance) Update(ctx context.Context, call *hostfuncs.Call) error {
	_, err := i.invoke(ctx, call, abi.UpdateExport, i.update)
	return err
}

// BumpReset calls the optional scratch allocator reset hook. It is a no-op when
// the hook is not exported. The hook's status is informational.
func (i *Instance) BumpReset(ctx context.Context, call *hostfuncs.Call) (uint32, error) {
	if i.bumpReset == nil {
		return 0, nil
	}
	return i.invoke(ctx, call, abi.BumpResetExport, i.bumpReset)
}

// Deliver hands one event to the module's event hook. Modules without the hooks
// silently ignore events. A non-zero status means the module declined the event.
func (i *Instance) Deliver(ctx context.Context, call *hostfuncs.Call, ev entities.Event) (uint32, error) {
	if !i.ReceivesEvents() {
		return 0, nil
	}
	status, err := marshal.Deliver(hostfuncs.WithCall(ctx, call), i.eventAlloc, i.eventUpdate, i.memory, ev)
	if err != nil {
		return 0, i.classify(call, abi.EventUpdateExport, err)
	}
	return status, nil
}

// invoke calls fn with the per-call environment attached and classifies failures.
func (i *Instance) invoke(ctx context.Context, call *hostfuncs.Call, export string, fn api.Function) (uint32, error) {
	res, err := fn.Call(hostfuncs.WithCall(ctx, call))
	if err != nil {
		return 0, i.classify(call, export, err)
	}
	if len(res) == 0 {
		return 0, nil
	}
	return uint32(res[0]), nil //nolint:gosec // G115: i32 result
}

// classify sorts a call failure into an abort (returned as is; the instance stays
// live) or a trap (returned as *errors.TrapError; the instance must be faulted).
func (i *Instance) classify(call *hostfuncs.Call, export string, err error) error {
	if errors.IsAbort(err) {
		return err
	}
	var bounds *errors.BoundsError
	if stdErrors.As(err, &bounds) {
		return &errors.AbortError{Capability: export, Err: err}
	}
	return &errors.TrapError{ModuleID: i.id, Export: export, Tick: call.Tick, Err: err}
}

// Close releases the module and frees its id for reuse.
func (i *Instance) Close(ctx context.Context) error {
	i.closeOnce.Do(func() {
		i.closeErr = i.module.Close(ctx)
		if i.release != nil {
			i.release(i.id)
		}
	})
	return i.closeErr
}
