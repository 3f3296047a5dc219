package wazero

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/gers-dev/gers-host/abi"
	"github.com/gers-dev/gers-host/domain/errors"
	"github.com/gers-dev/gers-host/hostfuncs"
)

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// Logger receives a debug line for every aborted capability call.
	Logger *zap.Logger
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithLogger sets the adapter's logger.
func WithLogger(logger *zap.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// defaultAdapterConfig returns the default adapter configuration.
func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{Logger: zap.NewNop()}
}

// RegisterWithRuntime exports every capability in table as a host module named
// after the table's namespace. Guests importing from the module resolve against these exports.
//
// Each exported function:
//   - Finds the per-call environment the caller attached with hostfuncs.WithCall
//   - Rejects calls on behalf of another module with a CapabilityError
//   - Invokes the table, which enforces the caller's grants
//   - Panics with the handler's error, which wazero surfaces as the guest call's error
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, table *hostfuncs.Table, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	builder := runtime.NewHostModuleBuilder(table.Namespace())

	for _, name := range table.Names() {
		binding, _ := table.Lookup(name)
		funcName := name // capture for closure
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				handleCall(ctx, mod, stack, table, funcName, cfg.Logger)
			}), ValueTypes(binding.Signature.Params), ValueTypes(binding.Signature.Results)).
			WithName(funcName).
			Export(funcName)
	}

	_, err := builder.Instantiate(ctx)
	return err
}

// handleCall dispatches one capability call from a guest.
func handleCall(ctx context.Context, mod api.Module, stack []uint64, table *hostfuncs.Table, name string, logger *zap.Logger) {
	call, ok := hostfuncs.CallFrom(ctx)
	if !ok || call.ModuleID != mod.Name() {
		panic(&errors.CapabilityError{ModuleID: mod.Name(), Name: name})
	}

	if err := table.Invoke(ctx, call, name, stack); err != nil {
		logger.Debug("capability call aborted",
			zap.String("module", call.ModuleID),
			zap.Uint64("tick", call.Tick),
			zap.String("capability", name),
			zap.Error(err))
		panic(err)
	}
}

// ValueTypes converts ABI value types to wazero's. The encodings are identical.
func ValueTypes(types []abi.ValueType) []api.ValueType {
	out := make([]api.ValueType, len(types))
	for i, t := range types {
		out[i] = api.ValueType(t)
	}
	return out
}

// SignatureOf returns the ABI signature of a compiled function definition.
func SignatureOf(def api.FunctionDefinition) abi.Signature {
	return abi.Sig(abiTypes(def.ParamTypes()), abiTypes(def.ResultTypes())...)
}

func abiTypes(types []api.ValueType) []abi.ValueType {
	if len(types) == 0 {
		return nil
	}
	out := make([]abi.ValueType, len(types))
	for i, t := range types {
		out[i] = abi.ValueType(t)
	}
	return out
}
