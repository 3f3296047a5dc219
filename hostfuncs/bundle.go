package hostfuncs

import (
	"context"
	"math"

	"github.com/gers-dev/gers-host/abi"
	"github.com/gers-dev/gers-host/domain/entities"
	"github.com/gers-dev/gers-host/domain/errors"
	"github.com/gers-dev/gers-host/domain/ports"
	"github.com/gers-dev/gers-host/marshal"
)

// Bundle is a pre-configured set of related capabilities.
type Bundle interface {
	Bindings() []Binding
}

// staticBundle implements Bundle with a fixed set of bindings.
type staticBundle struct {
	bindings []Binding
}

func (b *staticBundle) Bindings() []Binding {
	return b.bindings
}

type builtinConfig struct {
	eventTypes ports.EventTypeRegistry
	maxPayload uint32
}

// BuiltinOption configures the built-in capabilities.
type BuiltinOption func(*builtinConfig)

// WithEventTypes rejects emitted events whose type tag is not in reg.
func WithEventTypes(reg ports.EventTypeRegistry) BuiltinOption {
	return func(c *builtinConfig) {
		c.eventTypes = reg
	}
}

// WithMaxPayload limits the bytes a single log line or event payload may carry.
func WithMaxPayload(n uint32) BuiltinOption {
	return func(c *builtinConfig) {
		c.maxPayload = n
	}
}

// BuiltinBundle returns the capabilities every host exposes:
// log_info, log_warn, log_error, get_delta_time, get_tick, emit_event.
func BuiltinBundle(opts ...BuiltinOption) Bundle {
	cfg := builtinConfig{maxPayload: marshal.DefaultMaxPayload}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &staticBundle{
		bindings: []Binding{
			{Name: abi.CapLogInfo, Signature: abi.LogSignature, Handler: logHandler(entities.LogInfo, cfg.maxPayload)},
			{Name: abi.CapLogWarn, Signature: abi.LogSignature, Handler: logHandler(entities.LogWarn, cfg.maxPayload)},
			{Name: abi.CapLogError, Signature: abi.LogSignature, Handler: logHandler(entities.LogError, cfg.maxPayload)},
			{Name: abi.CapGetDeltaTime, Signature: abi.DeltaTimeSignature, Handler: deltaTime},
			{Name: abi.CapGetTick, Signature: abi.TickSignature, Handler: tick},
			{Name: abi.CapEmitEvent, Signature: abi.EmitSignature, Handler: emitHandler(cfg)},
		},
	}
}

func logHandler(level entities.LogLevel, limit uint32) Handler {
	return func(_ context.Context, call *Call, stack []uint64) error {
		msg, err := marshal.ReadLimited(call.Memory, uint32(stack[0]), uint32(stack[1]), limit) //nolint:gosec // G115: i32 params
		if err != nil {
			return err
		}
		call.Outbox.Log(call.ModuleID, call.Tick, level, msg)
		return nil
	}
}

func deltaTime(_ context.Context, call *Call, stack []uint64) error {
	stack[0] = uint64(math.Float32bits(call.DeltaTime))
	return nil
}

func tick(_ context.Context, call *Call, stack []uint64) error {
	stack[0] = call.Tick
	return nil
}

func emitHandler(cfg builtinConfig) Handler {
	return func(_ context.Context, call *Call, stack []uint64) error {
		eventType := uint32(stack[0]) //nolint:gosec // G115: i32 param
		if cfg.eventTypes != nil && !cfg.eventTypes.Known(eventType) {
			return &errors.UnknownEventTypeError{Type: eventType}
		}
		payload, err := marshal.ReadLimited(call.Memory, uint32(stack[1]), uint32(stack[2]), cfg.maxPayload) //nolint:gosec // G115: i32 params
		if err != nil {
			return err
		}
		call.Outbox.Emit(call.ModuleID, call.Tick, eventType, payload)
		return nil
	}
}
