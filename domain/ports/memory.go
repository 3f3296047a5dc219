package ports

import "context"

// LinearMemory is a guest's exported linear memory. wazero's api.Memory
// satisfies it.
type LinearMemory interface {
	// Size returns the current size in bytes.
	Size() uint32

	// Read returns a view of byteCount bytes at offset, or false if out of range.
	Read(offset, byteCount uint32) ([]byte, bool)

	// Write copies v to offset, or returns false if out of range.
	Write(offset uint32, v []byte) bool
}

// GuestFunction is an exported guest function. wazero's api.Function satisfies it.
type GuestFunction interface {
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}
