// Package marshal moves values across the sandbox boundary.
//
// Every value is either a scalar or a (pointer, length) pair into the calling
// module's own linear memory. Reads copy bytes out of guest memory after checking
// the range against the memory's current size; writes check the range before
// copying in. Nothing here keeps a guest address beyond the call that produced it.
package marshal
