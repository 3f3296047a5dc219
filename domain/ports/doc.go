// Package ports defines the interfaces the core depends on. Adapters (wazero,
// zap, the bus) implement them, and tests substitute fakes.
package ports
