// Package hostfuncs provides the host capability table: the curated, immutable set
// of functions a guest may import from the gers namespace.
//
// The table is pure Go with no WASM runtime dependency. Handlers read and write the
// raw value stack and reach guest memory only through the marshal package. An
// adapter (see infrastructure/wazero) binds the table into a concrete runtime.
package hostfuncs
