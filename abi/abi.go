package abi

import (
	"strings"
)

// Version is the ABI version implemented by this host.
const Version = "1.0.0"

// DefaultConstraint is the semver constraint a module's declared ABI version must satisfy.
const DefaultConstraint = "^1.0.0"

// VersionSection is the name of the custom section in which a guest declares the
// ABI version it was built against, as a UTF-8 semver string.
const VersionSection = "gers_abi"

// Namespace is the import module name guests use for host capabilities.
const Namespace = "gers"

// Required exports.
const (
	// MemoryExport is the name of the linear memory every guest must export.
	MemoryExport = "memory"

	// UpdateExport is the per-tick entrypoint. Signature: () -> ().
	UpdateExport = "__gers_update"
)

// Optional lifecycle hooks. A guest may export any subset of these; when present
// their signatures must match exactly.
const (
	// BumpInitExport prepares the guest's scratch allocator. Signature: () -> i32.
	// Called once after instantiation; a non-zero status rejects the module.
	BumpInitExport = "__gers_bump_init"

	// BumpResetExport clears the guest's scratch allocator. Signature: () -> i32.
	// Called at the start of every tick before events are delivered.
	BumpResetExport = "__gers_bump_reset"

	// BumpAllocExport is the guest's general scratch allocator.
	// Signature: (size i32) -> (ptr i32). The host never calls it.
	BumpAllocExport = "__gers_bump_alloc"

	// EventAllocExport reserves guest memory for an inbound event payload.
	// Signature: (len i32) -> (ptr i32). The guest keeps len for the matching
	// event update.
	EventAllocExport = "__gers_event_alloc"

	// EventUpdateExport hands one inbound event to the guest.
	// Signature: (type i32, ptr i32) -> (status i32).
	EventUpdateExport = "__gers_event_update"
)

// Built-in capability names, imported from Namespace.
const (
	CapLogInfo      = "log_info"
	CapLogWarn      = "log_warn"
	CapLogError     = "log_error"
	CapGetDeltaTime = "get_delta_time"
	CapGetTick      = "get_tick"
	CapEmitEvent    = "emit_event"
)

// ValueType is a WebAssembly number type. The values match the binary encoding so
// adapters can convert them directly.
type ValueType byte

const (
	I32 ValueType = 0x7f
	I64 ValueType = 0x7e
	F32 ValueType = 0x7d
	F64 ValueType = 0x7c
)

func (v ValueType) String() string {
	switch v {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return "unknown"
	}
}

// Signature is a function type.
type Signature struct {
	Params  []ValueType
	Results []ValueType
}

// Sig is shorthand for building a Signature.
func Sig(params []ValueType, results ...ValueType) Signature {
	return Signature{Params: params, Results: results}
}

// Equal reports whether two signatures have the same parameter and result types.
func (s Signature) Equal(o Signature) bool {
	return equalTypes(s.Params, o.Params) && equalTypes(s.Results, o.Results)
}

func (s Signature) String() string {
	var b strings.Builder
	b.WriteString("(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") -> (")
	for i, r := range s.Results {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.String())
	}
	b.WriteString(")")
	return b.String()
}

func equalTypes(a, b []ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Signatures of the required and optional guest exports.
var (
	UpdateSignature      = Sig(nil)
	BumpInitSignature    = Sig(nil, I32)
	BumpResetSignature   = Sig(nil, I32)
	BumpAllocSignature   = Sig([]ValueType{I32}, I32)
	EventAllocSignature  = Sig([]ValueType{I32}, I32)
	EventUpdateSignature = Sig([]ValueType{I32, I32}, I32)
)

// Hooks lists the optional exports and their required signatures.
var Hooks = map[string]Signature{
	BumpInitExport:    BumpInitSignature,
	BumpResetExport:   BumpResetSignature,
	BumpAllocExport:   BumpAllocSignature,
	EventAllocExport:  EventAllocSignature,
	EventUpdateExport: EventUpdateSignature,
}

// Signatures of the built-in capabilities.
var (
	LogSignature       = Sig([]ValueType{I32, I32})
	DeltaTimeSignature = Sig(nil, F32)
	TickSignature      = Sig(nil, I64)
	EmitSignature      = Sig([]ValueType{I32, I32, I32})
)
