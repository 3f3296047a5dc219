// Package abi defines the contract shared by the gers host and its guest modules:
// export and import names, capability signatures, optional lifecycle hooks, the
// ABI version carried in a custom section, and the packed pointer/length convention.
//
// The package holds data only. Both the loader and the capability table read it so
// the two sides can never disagree about a name or a signature.
package abi
