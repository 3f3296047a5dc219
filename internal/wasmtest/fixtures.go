package wasmtest

import (
	"github.com/gers-dev/gers-host/abi"
)

var (
	none = abi.Sig(nil)
	i32  = []abi.ValueType{abi.I32}
)

// guest starts a module with one exported page of memory.
func guest() *Module {
	return New().Memory(1).ExportMemory(abi.MemoryExport)
}

// Minimal exports memory and an empty entrypoint.
func Minimal() []byte {
	m := guest()
	m.Export(abi.UpdateExport, m.Func(none))
	return m.Bytes()
}

// Logger calls log_info with msg on every update.
func Logger(msg string) []byte {
	return LoggerAt(abi.CapLogInfo, msg)
}

// LoggerAt calls the named log capability with msg on every update.
func LoggerAt(capability, msg string) []byte {
	m := New()
	log := m.Import(abi.Namespace, capability, abi.LogSignature)
	m.Memory(1).ExportMemory(abi.MemoryExport).Data(0, []byte(msg))
	m.Export(abi.UpdateExport, m.Func(none,
		I32Const(0), I32Const(int32(len(msg))), Call(log), //nolint:gosec // G115: small
	))
	return m.Bytes()
}

// Emitter emits one event carrying payload on every update.
func Emitter(eventType uint32, payload string) []byte {
	m := New()
	emit := m.Import(abi.Namespace, abi.CapEmitEvent, abi.EmitSignature)
	m.Memory(1).ExportMemory(abi.MemoryExport).Data(0, []byte(payload))
	m.Export(abi.UpdateExport, m.Func(none,
		I32Const(int32(eventType)), I32Const(0), I32Const(int32(len(payload))), Call(emit), //nolint:gosec // G115: small
	))
	return m.Bytes()
}

// DeltaEmitter emits the tick's delta-time as a 4-byte little-endian f32 on every
// update.
func DeltaEmitter(eventType uint32) []byte {
	m := New()
	dt := m.Import(abi.Namespace, abi.CapGetDeltaTime, abi.DeltaTimeSignature)
	emit := m.Import(abi.Namespace, abi.CapEmitEvent, abi.EmitSignature)
	m.Memory(1).ExportMemory(abi.MemoryExport)
	m.Export(abi.UpdateExport, m.Func(none,
		I32Const(200), Call(dt), F32Store(0),
		I32Const(int32(eventType)), I32Const(200), I32Const(4), Call(emit), //nolint:gosec // G115: small
	))
	return m.Bytes()
}

// Trapper traps on every update.
func Trapper() []byte {
	m := guest()
	m.Export(abi.UpdateExport, m.Func(none, Unreachable()))
	return m.Bytes()
}

// TrapAtTick logs "alive" on every update and traps once get_tick reports tick,
// after staging its log line.
func TrapAtTick(tick int64) []byte {
	const msg = "alive"
	m := New()
	log := m.Import(abi.Namespace, abi.CapLogInfo, abi.LogSignature)
	now := m.Import(abi.Namespace, abi.CapGetTick, abi.TickSignature)
	m.Memory(1).ExportMemory(abi.MemoryExport).Data(0, []byte(msg))
	m.Export(abi.UpdateExport, m.Func(none,
		I32Const(0), I32Const(int32(len(msg))), Call(log),
		Call(now), I64Const(tick), I64Eq(), If(), Unreachable(), End(),
	))
	return m.Bytes()
}

// OutOfBounds logs a range that runs past the end of its single page.
func OutOfBounds() []byte {
	m := New()
	log := m.Import(abi.Namespace, abi.CapLogInfo, abi.LogSignature)
	emit := m.Import(abi.Namespace, abi.CapEmitEvent, abi.EmitSignature)
	m.Memory(1).ExportMemory(abi.MemoryExport)
	m.Export(abi.UpdateExport, m.Func(none,
		// Staged before the violation; must be discarded with the call.
		I32Const(1), I32Const(0), I32Const(4), Call(emit),
		I32Const(65530), I32Const(100), Call(log),
	))
	return m.Bytes()
}

// Receiver accepts events: the allocator records the requested length at offset
// 1020 and always returns offset 1024; the event hook logs each payload with
// log_info.
func Receiver() []byte {
	m := New()
	log := m.Import(abi.Namespace, abi.CapLogInfo, abi.LogSignature)
	m.Memory(1).ExportMemory(abi.MemoryExport)
	m.Export(abi.UpdateExport, m.Func(none))
	m.Export(abi.EventAllocExport, m.Func(abi.EventAllocSignature,
		I32Const(1020), LocalGet(0), I32Store(0), I32Const(1024),
	))
	m.Export(abi.EventUpdateExport, m.Func(abi.EventUpdateSignature,
		LocalGet(1), I32Const(1020), I32Load(0), Call(log), I32Const(0),
	))
	return m.Bytes()
}

// ResetCounter counts __gers_bump_reset calls in a 4-byte cell at offset 100 and
// emits the cell on every update. __gers_bump_init returns initStatus.
func ResetCounter(eventType uint32, initStatus int32) []byte {
	m := New()
	emit := m.Import(abi.Namespace, abi.CapEmitEvent, abi.EmitSignature)
	m.Memory(1).ExportMemory(abi.MemoryExport)
	m.Export(abi.UpdateExport, m.Func(none,
		I32Const(int32(eventType)), I32Const(100), I32Const(4), Call(emit), //nolint:gosec // G115: small
	))
	m.Export(abi.BumpInitExport, m.Func(abi.BumpInitSignature, I32Const(initStatus)))
	m.Export(abi.BumpResetExport, m.Func(abi.BumpResetSignature,
		I32Const(100), I32Const(100), I32Load(0), I32Const(1), I32Add(), I32Store(0),
		I32Const(0),
	))
	return m.Bytes()
}

// NoMemory exports an entrypoint but no memory.
func NoMemory() []byte {
	m := New()
	m.Export(abi.UpdateExport, m.Func(none))
	return m.Bytes()
}

// ImportedMemory imports its memory and re-exports it.
func ImportedMemory() []byte {
	m := New().ImportMemory("env", "memory", 1).ExportMemory(abi.MemoryExport)
	m.Export(abi.UpdateExport, m.Func(none))
	return m.Bytes()
}

// NoEntrypoint exports memory but no update function.
func NoEntrypoint() []byte {
	m := guest()
	m.Export("update", m.Func(none))
	return m.Bytes()
}

// BadEntrypoint exports an update function that takes a parameter.
func BadEntrypoint() []byte {
	m := guest()
	m.Export(abi.UpdateExport, m.Func(abi.Sig(i32)))
	return m.Bytes()
}

// Importing imports module.name with sig and never calls it.
func Importing(module, name string, sig abi.Signature) []byte {
	m := New()
	m.Import(module, name, sig)
	m.Memory(1).ExportMemory(abi.MemoryExport)
	m.Export(abi.UpdateExport, m.Func(none))
	return m.Bytes()
}

// WithABI is Minimal carrying a gers_abi custom section.
func WithABI(version string) []byte {
	m := guest()
	m.Export(abi.UpdateExport, m.Func(none))
	m.Custom(abi.VersionSection, []byte(version))
	return m.Bytes()
}

// BadHook is Minimal plus an event allocator with the wrong signature.
func BadHook() []byte {
	m := guest()
	m.Export(abi.UpdateExport, m.Func(none))
	m.Export(abi.EventAllocExport, m.Func(none))
	return m.Bytes()
}

// EventHooks is Minimal plus an event hook pair whose update export has sig.
func EventHooks(sig abi.Signature) []byte {
	m := guest()
	m.Export(abi.UpdateExport, m.Func(none))
	m.Export(abi.EventAllocExport, m.Func(abi.EventAllocSignature, I32Const(1024)))
	m.Export(abi.EventUpdateExport, m.Func(sig, I32Const(0)))
	return m.Bytes()
}

// BumpAllocator is Minimal plus a scratch allocator export with sig.
func BumpAllocator(sig abi.Signature) []byte {
	m := guest()
	m.Export(abi.UpdateExport, m.Func(none))
	m.Export(abi.BumpAllocExport, m.Func(sig, I32Const(2048)))
	return m.Bytes()
}

// InitLogger calls log_info with msg from __gers_bump_init and returns 0.
func InitLogger(msg string) []byte {
	m := New()
	log := m.Import(abi.Namespace, abi.CapLogInfo, abi.LogSignature)
	m.Memory(1).ExportMemory(abi.MemoryExport).Data(0, []byte(msg))
	m.Export(abi.UpdateExport, m.Func(none))
	m.Export(abi.BumpInitExport, m.Func(abi.BumpInitSignature,
		I32Const(0), I32Const(int32(len(msg))), Call(log), I32Const(0), //nolint:gosec // G115: small
	))
	return m.Bytes()
}
