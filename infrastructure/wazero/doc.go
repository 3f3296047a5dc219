// Package wazero registers the host capability table with the wazero runtime.
//
// This package bridges the pure Go capability handlers in hostfuncs with the wazero
// WebAssembly runtime. It handles:
//
//   - Exporting every table binding under the table's namespace with its exact
//     WebAssembly signature
//   - Locating the per-call environment the scheduler attached to the context
//   - Turning handler failures into guest call aborts
//
// # Basic Usage
//
//	table, err := hostfuncs.DefaultTable()
//	if err != nil {
//	    return err
//	}
//
//	runtime := wazero.NewRuntime(ctx)
//	err = wazeroadapter.RegisterWithRuntime(ctx, runtime, table)
//
// A guest call made with a context lacking hostfuncs.WithCall, or on behalf of a
// different module than the one calling, fails with a CapabilityError.
package wazero
