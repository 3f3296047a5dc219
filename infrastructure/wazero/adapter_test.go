package wazero

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/gers-dev/gers-host/abi"
	"github.com/gers-dev/gers-host/domain/entities"
	"github.com/gers-dev/gers-host/domain/errors"
	"github.com/gers-dev/gers-host/hostfuncs"
	"github.com/gers-dev/gers-host/internal/testutil"
	"github.com/gers-dev/gers-host/internal/wasmtest"
)

func TestDefaultAdapterConfig(t *testing.T) {
	cfg := defaultAdapterConfig()
	require.NotNil(t, cfg.Logger)

	WithLogger(nil)(&cfg)
	assert.NotNil(t, cfg.Logger)
}

func TestSignatureRoundTrip(t *testing.T) {
	for _, sig := range []abi.Signature{abi.LogSignature, abi.DeltaTimeSignature, abi.EmitSignature, abi.UpdateSignature} {
		assert.Equal(t, len(sig.Params), len(ValueTypes(sig.Params)))
		assert.Equal(t, len(sig.Results), len(ValueTypes(sig.Results)))
	}
	assert.Equal(t, api.ValueTypeF32, ValueTypes([]abi.ValueType{abi.F32})[0])
	assert.Equal(t, api.ValueTypeI64, ValueTypes([]abi.ValueType{abi.I64})[0])
}

func instantiate(t *testing.T, name string, bin []byte) (api.Module, func()) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)

	table, err := hostfuncs.DefaultTable()
	require.NoError(t, err)
	require.NoError(t, RegisterWithRuntime(ctx, rt, table))

	compiled, err := rt.CompileModule(ctx, bin)
	require.NoError(t, err)

	imports := compiled.ImportedFunctions()
	for _, def := range imports {
		_, fn, _ := def.Import()
		binding, ok := table.Lookup(fn)
		require.True(t, ok)
		assert.True(t, binding.Signature.Equal(SignatureOf(def)))
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name).WithStartFunctions())
	require.NoError(t, err)
	return mod, func() { _ = rt.Close(ctx) }
}

func newCall(id string, mod api.Module, grants ...string) *hostfuncs.Call {
	return &hostfuncs.Call{
		Memory:    mod.ExportedMemory(abi.MemoryExport),
		Grants:    entities.NewGrantSet(grants...),
		Outbox:    &hostfuncs.Outbox{},
		ModuleID:  id,
		Tick:      1,
		DeltaTime: 0.0166,
	}
}

func TestRegisterWithRuntime_Log(t *testing.T) {
	mod, done := instantiate(t, "scenario", wasmtest.Logger("Hello, World!"))
	defer done()

	call := newCall("scenario", mod, abi.CapLogInfo)
	ctx := hostfuncs.WithCall(context.Background(), call)

	_, err := mod.ExportedFunction(abi.UpdateExport).Call(ctx)
	require.NoError(t, err)

	require.Len(t, call.Outbox.Logs, 1)
	assert.Equal(t, "Hello, World!", string(call.Outbox.Logs[0].Message))
	assert.Equal(t, "scenario", call.Outbox.Logs[0].Module)
}

func TestRegisterWithRuntime_DeltaTime(t *testing.T) {
	mod, done := instantiate(t, "dt", wasmtest.DeltaEmitter(7))
	defer done()

	call := newCall("dt", mod, abi.CapGetDeltaTime, abi.CapEmitEvent)
	_, err := mod.ExportedFunction(abi.UpdateExport).Call(hostfuncs.WithCall(context.Background(), call))
	require.NoError(t, err)

	require.Len(t, call.Outbox.Events, 1)
	ev := call.Outbox.Events[0]
	assert.Equal(t, uint32(7), ev.Type)
	require.Len(t, ev.Payload, 4)
	bits := uint32(ev.Payload[0]) | uint32(ev.Payload[1])<<8 | uint32(ev.Payload[2])<<16 | uint32(ev.Payload[3])<<24
	assert.Equal(t, float32(0.0166), api.DecodeF32(uint64(bits)))
}

func TestRegisterWithRuntime_MissingCall(t *testing.T) {
	mod, done := instantiate(t, "scenario", wasmtest.Logger("Hello"))
	defer done()

	_, err := mod.ExportedFunction(abi.UpdateExport).Call(context.Background())
	var capErr *errors.CapabilityError
	require.True(t, stdErrors.As(err, &capErr), "got %v", err)
	assert.Equal(t, "scenario", capErr.ModuleID)
	assert.True(t, errors.IsFatal(err))
}

func TestRegisterWithRuntime_ForeignCall(t *testing.T) {
	mod, done := instantiate(t, "a", wasmtest.Logger("Hello"))
	defer done()

	call := newCall("b", mod, abi.CapLogInfo)
	_, err := mod.ExportedFunction(abi.UpdateExport).Call(hostfuncs.WithCall(context.Background(), call))
	assert.True(t, errors.IsFatal(err))
	assert.Empty(t, call.Outbox.Logs)
}

func TestRegisterWithRuntime_OutOfBounds(t *testing.T) {
	mod, done := instantiate(t, "oob", wasmtest.OutOfBounds())
	defer done()

	call := newCall("oob", mod, abi.CapLogInfo, abi.CapEmitEvent)
	ctx := hostfuncs.WithCall(context.Background(), call)

	_, err := mod.ExportedFunction(abi.UpdateExport).Call(ctx)
	be := testutil.RequireBoundsError(t, err)
	assert.Equal(t, uint32(65530), be.Ptr)
	assert.Equal(t, uint32(100), be.Length)
	assert.Equal(t, uint32(65536), be.Size)
	assert.True(t, errors.IsAbort(err))
	assert.False(t, errors.IsFatal(err))

	// The instance is still callable after the abort.
	_, err = mod.ExportedFunction(abi.UpdateExport).Call(ctx)
	testutil.RequireBoundsError(t, err)
}
