// Package host provides the runtime environment for executing gers mods.
//
// It abstracts the underlying WASM engine (wazero), validates untrusted modules
// against the host ABI before anything runs, and wraps each accepted module in an
// Instance with its own private linear memory and immutable capability grants.
// Capability calls from guests are served by a hostfuncs.Table registered as the
// "gers" host module.
package host
