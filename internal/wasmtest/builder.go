// Package wasmtest assembles small WebAssembly binaries for host tests.
//
// Only the subset of the binary format the tests need is supported: function
// types, function and memory imports, one memory, exports, code without extra
// locals, active data segments and custom sections.
package wasmtest

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/gers-dev/gers-host/abi"
)

const (
	sectionCustom   = 0
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11

	kindFunc   = 0x00
	kindMemory = 0x02
)

type importEntry struct {
	module, name string
	kind         byte
	index        uint32 // type index for functions, min pages for memories
}

type function struct {
	body    []byte
	typeIdx uint32
}

type export struct {
	name  string
	kind  byte
	index uint32
}

type segment struct {
	data   []byte
	offset uint32
}

type custom struct {
	name string
	data []byte
}

// Module accumulates the pieces of a module. Imports must be declared before any
// function is defined so function indices stay stable.
type Module struct {
	types    []abi.Signature
	imports  []importEntry
	funcs    []function
	exports  []export
	data     []segment
	customs  []custom
	memPages uint32
	hasMem   bool
	nImports uint32
}

// New returns an empty module.
func New() *Module {
	return &Module{}
}

func (m *Module) typeIndex(sig abi.Signature) uint32 {
	for i, t := range m.types {
		if t.Equal(sig) {
			return uint32(i) //nolint:gosec // G115: small
		}
	}
	m.types = append(m.types, sig)
	return uint32(len(m.types) - 1) //nolint:gosec // G115: small
}

// Import declares a function import and returns its function index.
func (m *Module) Import(module, name string, sig abi.Signature) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmtest: imports must precede function definitions")
	}
	m.imports = append(m.imports, importEntry{module: module, name: name, kind: kindFunc, index: m.typeIndex(sig)})
	m.nImports++
	return m.nImports - 1
}

// ImportMemory declares an imported memory instead of a local one.
func (m *Module) ImportMemory(module, name string, minPages uint32) *Module {
	m.imports = append(m.imports, importEntry{module: module, name: name, kind: kindMemory, index: minPages})
	return m
}

// Func defines a function from the concatenated instructions and returns its
// index. The closing end opcode is appended.
func (m *Module) Func(sig abi.Signature, code ...[]byte) uint32 {
	body := bytes.Join(code, nil)
	body = append(body, opEnd)
	m.funcs = append(m.funcs, function{typeIdx: m.typeIndex(sig), body: body})
	return m.nImports + uint32(len(m.funcs)-1) //nolint:gosec // G115: small
}

// Memory declares a local memory with the given initial pages.
func (m *Module) Memory(pages uint32) *Module {
	m.hasMem = true
	m.memPages = pages
	return m
}

// Export exports a function under name.
func (m *Module) Export(name string, funcIdx uint32) *Module {
	m.exports = append(m.exports, export{name: name, kind: kindFunc, index: funcIdx})
	return m
}

// ExportMemory exports memory 0 under name.
func (m *Module) ExportMemory(name string) *Module {
	m.exports = append(m.exports, export{name: name, kind: kindMemory, index: 0})
	return m
}

// Data places bytes in memory 0 at offset during instantiation.
func (m *Module) Data(offset uint32, data []byte) *Module {
	m.data = append(m.data, segment{offset: offset, data: data})
	return m
}

// Custom appends a custom section.
func (m *Module) Custom(name string, data []byte) *Module {
	m.customs = append(m.customs, custom{name: name, data: data})
	return m
}

// Bytes encodes the module.
func (m *Module) Bytes() []byte {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	if len(m.types) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.types))) //nolint:gosec // G115: small
		for _, t := range m.types {
			s = append(s, 0x60)
			s = appendTypes(s, t.Params)
			s = appendTypes(s, t.Results)
		}
		writeSection(&out, sectionType, s)
	}

	if len(m.imports) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.imports))) //nolint:gosec // G115: small
		for _, imp := range m.imports {
			s = appendName(s, imp.module)
			s = appendName(s, imp.name)
			s = append(s, imp.kind)
			if imp.kind == kindMemory {
				s = append(s, 0x00)
			}
			s = appendU32(s, imp.index)
		}
		writeSection(&out, sectionImport, s)
	}

	if len(m.funcs) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.funcs))) //nolint:gosec // G115: small
		for _, f := range m.funcs {
			s = appendU32(s, f.typeIdx)
		}
		writeSection(&out, sectionFunction, s)
	}

	if m.hasMem {
		s := []byte{0x01, 0x00}
		s = appendU32(s, m.memPages)
		writeSection(&out, sectionMemory, s)
	}

	if len(m.exports) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.exports))) //nolint:gosec // G115: small
		for _, e := range m.exports {
			s = appendName(s, e.name)
			s = append(s, e.kind)
			s = appendU32(s, e.index)
		}
		writeSection(&out, sectionExport, s)
	}

	if len(m.funcs) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.funcs))) //nolint:gosec // G115: small
		for _, f := range m.funcs {
			body := append([]byte{0x00}, f.body...) // no local declarations
			s = appendU32(s, uint32(len(body)))     //nolint:gosec // G115: small
			s = append(s, body...)
		}
		writeSection(&out, sectionCode, s)
	}

	if len(m.data) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.data))) //nolint:gosec // G115: small
		for _, d := range m.data {
			s = append(s, 0x00)
			s = append(s, I32Const(int32(d.offset))...) //nolint:gosec // G115: test offsets are small
			s = append(s, opEnd)
			s = appendU32(s, uint32(len(d.data))) //nolint:gosec // G115: small
			s = append(s, d.data...)
		}
		writeSection(&out, sectionData, s)
	}

	for _, c := range m.customs {
		s := appendName(nil, c.name)
		s = append(s, c.data...)
		writeSection(&out, sectionCustom, s)
	}

	return out.Bytes()
}

func writeSection(out *bytes.Buffer, id byte, content []byte) {
	out.WriteByte(id)
	out.Write(appendU32(nil, uint32(len(content)))) //nolint:gosec // G115: small
	out.Write(content)
}

func appendTypes(b []byte, types []abi.ValueType) []byte {
	b = appendU32(b, uint32(len(types))) //nolint:gosec // G115: small
	for _, t := range types {
		b = append(b, byte(t))
	}
	return b
}

func appendName(b []byte, s string) []byte {
	b = appendU32(b, uint32(len(s))) //nolint:gosec // G115: small
	return append(b, s...)
}

func appendU32(b []byte, v uint32) []byte {
	return binary.AppendUvarint(b, uint64(v))
}

func appendS64(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

func appendF32(b []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
}
