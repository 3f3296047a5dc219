package marshal

import (
	"context"
	"fmt"
	"math"

	"github.com/gers-dev/gers-host/domain/entities"
	"github.com/gers-dev/gers-host/domain/errors"
	"github.com/gers-dev/gers-host/domain/ports"
)

// DefaultMaxPayload limits a single marshalled payload (1MB).
const DefaultMaxPayload = 1 * 1024 * 1024

// CheckBounds returns a BoundsError if [ptr, ptr+length) does not fit in size bytes.
func CheckBounds(ptr, length, size uint32) error {
	if uint64(ptr)+uint64(length) > uint64(size) {
		return &errors.BoundsError{Ptr: ptr, Length: length, Size: size}
	}
	return nil
}

// Read copies length bytes starting at ptr out of mem.
func Read(mem ports.LinearMemory, ptr, length uint32) ([]byte, error) {
	if mem == nil {
		return nil, &errors.BoundsError{Ptr: ptr, Length: length}
	}
	size := mem.Size()
	if err := CheckBounds(ptr, length, size); err != nil {
		return nil, err
	}
	view, ok := mem.Read(ptr, length)
	if !ok {
		// Memory shrank between Size and Read; treat it the same way.
		return nil, &errors.BoundsError{Ptr: ptr, Length: length, Size: size}
	}
	out := make([]byte, length)
	copy(out, view)
	return out, nil
}

// ReadLimited is Read with an upper bound on length. Oversized requests fail with a
// BoundsError whose Size is the limit.
func ReadLimited(mem ports.LinearMemory, ptr, length, limit uint32) ([]byte, error) {
	if length > limit {
		return nil, &errors.BoundsError{Ptr: ptr, Length: length, Size: limit}
	}
	return Read(mem, ptr, length)
}

// ReadString reads raw UTF-8 bytes. No validation or conversion is performed.
func ReadString(mem ports.LinearMemory, ptr, length uint32) (string, error) {
	b, err := Read(mem, ptr, length)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Write copies data into mem at ptr.
func Write(mem ports.LinearMemory, ptr uint32, data []byte) error {
	if uint64(len(data)) > math.MaxUint32 {
		return &errors.BoundsError{Ptr: ptr, Length: math.MaxUint32}
	}
	length := uint32(len(data)) //nolint:gosec // G115: checked above
	if mem == nil {
		return &errors.BoundsError{Ptr: ptr, Length: length}
	}
	size := mem.Size()
	if err := CheckBounds(ptr, length, size); err != nil {
		return err
	}
	if !mem.Write(ptr, data) {
		return &errors.BoundsError{Ptr: ptr, Length: length, Size: size}
	}
	return nil
}

// Deliver hands one event to a guest: it asks the guest to allocate room for the
// payload, writes the payload there, and calls the guest's event entrypoint with
// the type and pointer. The length only travels through the allocator call.
// The returned status is the guest's own result; non-zero means the guest declined
// the event. Errors from the guest calls are returned unwrapped so the caller can
// classify them.
func Deliver(ctx context.Context, alloc, update ports.GuestFunction, mem ports.LinearMemory, ev entities.Event) (uint32, error) {
	if uint64(len(ev.Payload)) > math.MaxUint32 {
		return 0, &errors.BoundsError{Length: math.MaxUint32}
	}
	length := uint32(len(ev.Payload)) //nolint:gosec // G115: checked above

	res, err := alloc.Call(ctx, uint64(length))
	if err != nil {
		return 0, err
	}
	if len(res) == 0 {
		return 0, fmt.Errorf("event allocator returned no results")
	}
	ptr := uint32(res[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit

	if err := Write(mem, ptr, ev.Payload); err != nil {
		return 0, err
	}

	res, err = update.Call(ctx, uint64(ev.Type), uint64(ptr))
	if err != nil {
		return 0, err
	}
	if len(res) == 0 {
		return 0, nil
	}
	return uint32(res[0]), nil //nolint:gosec // G115: i32 result
}
