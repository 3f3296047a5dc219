// Package errors provides the host runtime's error taxonomy.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/gers-dev/gers-host/domain/entities"
)

// DetailedError is implemented by errors that can convert themselves to a
// structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to a structured ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// LoadKind classifies why a module was rejected by the loader.
type LoadKind string

const (
	MissingMemoryExport LoadKind = "MissingMemoryExport"
	MissingEntrypoint   LoadKind = "MissingEntrypoint"
	UnresolvedImport    LoadKind = "UnresolvedImport"
	UngrantedCapability LoadKind = "UngrantedCapability"
	AbiVersionMismatch  LoadKind = "AbiVersionMismatch"
	InvalidBinary       LoadKind = "InvalidBinary"
	DuplicateModule     LoadKind = "DuplicateModule"
	HookSignature       LoadKind = "HookSignature"
	InstantiationFailed LoadKind = "InstantiationFailed"
	InitFailed          LoadKind = "InitFailed"
)

// Sentinels for errors.Is matching on the load kind alone.
var (
	ErrMissingMemoryExport = &LoadError{Kind: MissingMemoryExport}
	ErrMissingEntrypoint   = &LoadError{Kind: MissingEntrypoint}
	ErrUnresolvedImport    = &LoadError{Kind: UnresolvedImport}
	ErrUngrantedCapability = &LoadError{Kind: UngrantedCapability}
	ErrAbiVersionMismatch  = &LoadError{Kind: AbiVersionMismatch}
	ErrInvalidBinary       = &LoadError{Kind: InvalidBinary}
	ErrDuplicateModule     = &LoadError{Kind: DuplicateModule}
	ErrHookSignature       = &LoadError{Kind: HookSignature}
	ErrInstantiationFailed = &LoadError{Kind: InstantiationFailed}
	ErrInitFailed          = &LoadError{Kind: InitFailed}
)

// LoadError reports a module rejected before it could be scheduled.
type LoadError struct {
	Err error

	// ModuleID is the descriptor id.
	ModuleID string

	// Kind is the rejection class.
	Kind LoadKind

	// Name is the import, export or capability the rejection refers to, if any.
	Name string
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("load %q: %s", e.ModuleID, e.Kind)
	if e.Name != "" {
		msg = fmt.Sprintf("%s(%s)", msg, e.Name)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is matches another LoadError of the same kind. A target with a name set must
// also match the name.
func (e *LoadError) Is(target error) bool {
	t, ok := target.(*LoadError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Name == "" || t.Name == e.Name
}

// ToErrorDetail implements DetailedError.
func (e *LoadError) ToErrorDetail() *entities.ErrorDetail {
	d := &entities.ErrorDetail{Message: e.Error(), Type: "load", Code: string(e.Kind), Module: e.ModuleID}
	if e.Name != "" {
		d.Details = map[string]any{"name": e.Name}
	}
	return d
}

// BoundsError reports a pointer/length pair that does not fit in the addressed
// guest memory. It aborts only the call in progress.
type BoundsError struct {
	Ptr    uint32
	Length uint32
	Size   uint32
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("guest memory access out of bounds: ptr=%d len=%d size=%d", e.Ptr, e.Length, e.Size)
}

// ToErrorDetail implements DetailedError.
func (e *BoundsError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "bounds",
		Code:    "out_of_bounds",
		Details: map[string]any{"ptr": e.Ptr, "len": e.Length, "size": e.Size},
	}
}

// TrapError reports a guest runtime fault caught at the call boundary. The owning
// instance is faulted; other instances are unaffected.
type TrapError struct {
	Err      error
	ModuleID string
	Export   string
	Tick     uint64
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("module %q trapped in %s at tick %d: %v", e.ModuleID, e.Export, e.Tick, e.Err)
}

func (e *TrapError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *TrapError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "trap",
		Code:    e.Export,
		Module:  e.ModuleID,
		Details: map[string]any{"tick": e.Tick},
	}
}

// CapabilityError reports a guest invoking a capability it was not granted. The
// loader makes this impossible, so seeing one at runtime is an invariant
// violation and fatal to the instance.
type CapabilityError struct {
	ModuleID string
	Name     string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("module %q invoked ungranted capability %q", e.ModuleID, e.Name)
}

// ToErrorDetail implements DetailedError.
func (e *CapabilityError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "capability", Code: e.Name, Module: e.ModuleID}
}

// AbortError wraps a failure raised by a capability handler. The guest call in
// progress is abandoned and its staged output discarded, but the instance stays
// live.
type AbortError struct {
	Err        error
	Capability string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("capability %s aborted call: %v", e.Capability, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *AbortError) ToErrorDetail() *entities.ErrorDetail {
	if d := ToErrorDetail(e.Err); d != nil && d.Type != "internal" {
		return d
	}
	return &entities.ErrorDetail{Message: e.Error(), Type: "abort", Code: e.Capability}
}

// UnknownEventTypeError reports an emitted event whose type tag is not registered.
type UnknownEventTypeError struct {
	Type uint32
}

func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("unknown event type %d", e.Type)
}

// ToErrorDetail implements DetailedError.
func (e *UnknownEventTypeError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "event", Code: "unknown_type"}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: e.Field}
}

// IsFatal reports whether err is, or wraps, a TrapError or CapabilityError: the
// two outcomes that fault an instance.
func IsFatal(err error) bool {
	var trap *TrapError
	var capErr *CapabilityError
	return stdErrors.As(err, &trap) || stdErrors.As(err, &capErr)
}

// IsAbort reports whether err is, or wraps, an AbortError.
func IsAbort(err error) bool {
	var abort *AbortError
	return stdErrors.As(err, &abort)
}
