// Package testutil provides common test doubles and assertions for host tests
package testutil

import (
	"context"
)

// Memory is a bounds-checked byte slice standing in for guest linear memory.
type Memory struct {
	Buf []byte
}

// NewMemory returns a zeroed memory of the given size.
func NewMemory(size int) *Memory {
	return &Memory{Buf: make([]byte, size)}
}

// Size returns the memory size in bytes.
func (m *Memory) Size() uint32 { return uint32(len(m.Buf)) } //nolint:gosec // G115: test sizes are small

// Read returns a view of n bytes at offset.
func (m *Memory) Read(offset, n uint32) ([]byte, bool) {
	if uint64(offset)+uint64(n) > uint64(len(m.Buf)) {
		return nil, false
	}
	return m.Buf[offset : offset+n], true
}

// Write copies v to offset.
func (m *Memory) Write(offset uint32, v []byte) bool {
	if uint64(offset)+uint64(len(v)) > uint64(len(m.Buf)) {
		return false
	}
	copy(m.Buf[offset:], v)
	return true
}

// Put copies s into memory at offset and returns its length.
func (m *Memory) Put(offset uint32, s string) uint32 {
	copy(m.Buf[offset:], s)
	return uint32(len(s)) //nolint:gosec // G115: test strings are small
}

// Func adapts a closure to ports.GuestFunction.
type Func func(ctx context.Context, params ...uint64) ([]uint64, error)

// Call invokes f.
func (f Func) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f(ctx, params...)
}
