// Package entities provides the core data model of the host runtime: module
// descriptors handed to the loader, events carried by the bus, and the per-tick
// context built by the scheduler.
package entities
