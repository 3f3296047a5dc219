package wasmtest

const (
	opUnreachable = 0x00
	opIf          = 0x04
	opEnd         = 0x0B
	opCall        = 0x10
	opDrop        = 0x1A
	opLocalGet    = 0x20
	opI32Load     = 0x28
	opI32Store    = 0x36
	opF32Store    = 0x38
	opI32Const    = 0x41
	opI64Const    = 0x42
	opF32Const    = 0x43
	opI32Eq       = 0x46
	opI64Eq       = 0x51
	opI32Add      = 0x6A

	blockEmpty = 0x40
	align4     = 2
)

// Unreachable traps.
func Unreachable() []byte { return []byte{opUnreachable} }

// Drop discards the top of stack.
func Drop() []byte { return []byte{opDrop} }

// End closes a block.
func End() []byte { return []byte{opEnd} }

// I32Const pushes v.
func I32Const(v int32) []byte { return appendS64([]byte{opI32Const}, int64(v)) }

// I64Const pushes v.
func I64Const(v int64) []byte { return appendS64([]byte{opI64Const}, v) }

// F32Const pushes v.
func F32Const(v float32) []byte { return appendF32([]byte{opF32Const}, v) }

// Call calls the function at idx.
func Call(idx uint32) []byte { return appendU32([]byte{opCall}, idx) }

// LocalGet pushes parameter or local i.
func LocalGet(i uint32) []byte { return appendU32([]byte{opLocalGet}, i) }

// I32Load loads an i32 from the address on the stack plus offset.
func I32Load(offset uint32) []byte { return appendU32([]byte{opI32Load, align4}, offset) }

// I32Store stores an i32 at the address on the stack plus offset.
func I32Store(offset uint32) []byte { return appendU32([]byte{opI32Store, align4}, offset) }

// F32Store stores an f32 at the address on the stack plus offset.
func F32Store(offset uint32) []byte { return appendU32([]byte{opF32Store, align4}, offset) }

// I32Add adds the two i32 values on top of the stack.
func I32Add() []byte { return []byte{opI32Add} }

// I32Eq compares the two i32 values on top of the stack.
func I32Eq() []byte { return []byte{opI32Eq} }

// I64Eq compares the two i64 values on top of the stack.
func I64Eq() []byte { return []byte{opI64Eq} }

// If opens a block with no result, taken when the i32 on the stack is non-zero.
// Close it with End.
func If() []byte { return []byte{opIf, blockEmpty} }
