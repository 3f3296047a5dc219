package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadError_IsKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &LoadError{ModuleID: "a", Kind: UnresolvedImport, Name: "gers.teleport"})

	assert.True(t, stdErrors.Is(err, ErrUnresolvedImport))
	assert.True(t, stdErrors.Is(err, &LoadError{Kind: UnresolvedImport, Name: "gers.teleport"}))
	assert.False(t, stdErrors.Is(err, &LoadError{Kind: UnresolvedImport, Name: "gers.other"}))
	assert.False(t, stdErrors.Is(err, ErrMissingEntrypoint))
}

func TestLoadError_Message(t *testing.T) {
	err := &LoadError{ModuleID: "core", Kind: UngrantedCapability, Name: "emit_event"}
	assert.Equal(t, `load "core": UngrantedCapability(emit_event)`, err.Error())

	inner := stdErrors.New("bad magic")
	err = &LoadError{ModuleID: "core", Kind: InvalidBinary, Err: inner}
	assert.Equal(t, `load "core": InvalidBinary: bad magic`, err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestToErrorDetail(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType string
		wantCode string
	}{
		{"nil", nil, "", ""},
		{"load", &LoadError{ModuleID: "m", Kind: MissingMemoryExport}, "load", "MissingMemoryExport"},
		{"bounds", &BoundsError{Ptr: 10, Length: 20, Size: 16}, "bounds", "out_of_bounds"},
		{"trap", &TrapError{ModuleID: "m", Export: "__gers_update", Err: stdErrors.New("unreachable")}, "trap", "__gers_update"},
		{"capability", &CapabilityError{ModuleID: "m", Name: "log_info"}, "capability", "log_info"},
		{"event", &UnknownEventTypeError{Type: 9}, "event", "unknown_type"},
		{"config", &ConfigError{Field: "workers", Err: stdErrors.New("min")}, "config", "workers"},
		{"generic", stdErrors.New("boom"), "internal", ""},
		{"wrapped", fmt.Errorf("call: %w", &BoundsError{}), "bounds", "out_of_bounds"},
		{"abort of bounds", &AbortError{Capability: "log_info", Err: &BoundsError{}}, "bounds", "out_of_bounds"},
		{"abort of plain error", &AbortError{Capability: "emit_event", Err: stdErrors.New("full")}, "abort", "emit_event"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ToErrorDetail(tt.err)
			if tt.err == nil {
				assert.Nil(t, d)
				return
			}
			require.NotNil(t, d)
			assert.Equal(t, tt.wantType, d.Type)
			assert.Equal(t, tt.wantCode, d.Code)
		})
	}
}

func TestIsAbort(t *testing.T) {
	abort := &AbortError{Capability: "log_info", Err: &BoundsError{}}
	assert.True(t, IsAbort(fmt.Errorf("wasm: %w", abort)))
	assert.False(t, IsAbort(&BoundsError{}))
	assert.False(t, IsFatal(abort))

	var be *BoundsError
	assert.ErrorAs(t, abort, &be)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(&TrapError{}))
	assert.True(t, IsFatal(fmt.Errorf("x: %w", &CapabilityError{})))
	assert.False(t, IsFatal(&BoundsError{}))
	assert.False(t, IsFatal(stdErrors.New("x")))
}
