package hostfuncs

import (
	"github.com/gers-dev/gers-host/domain/entities"
	"github.com/gers-dev/gers-host/domain/ports"
)

// Call is the per-call environment handed to capability handlers. The scheduler
// builds one for every guest call; it is owned by a single goroutine for the
// duration of that call.
type Call struct {
	// Memory is the calling module's exported linear memory.
	Memory ports.LinearMemory

	// Grants is the calling module's resolved capability set.
	Grants entities.GrantSet

	// Outbox collects events and log lines staged during the call.
	Outbox *Outbox

	// ModuleID identifies the calling module.
	ModuleID string

	// Tick is the current tick number.
	Tick uint64

	// DeltaTime is the current tick's simulated step.
	DeltaTime float32
}

// Outbox stages everything a call produces. Nothing in it is visible to other
// modules until the scheduler commits it.
type Outbox struct {
	Events []entities.Event
	Logs   []entities.LogRecord
	next   uint32
}

// Emit stages an event tagged with the caller and tick. Index increases per emission.
func (o *Outbox) Emit(source string, tick uint64, eventType uint32, payload []byte) {
	o.Events = append(o.Events, entities.Event{
		Type:    eventType,
		Payload: payload,
		Source:  source,
		Tick:    tick,
		Index:   o.next,
	})
	o.next++
}

// Log stages a log line.
func (o *Outbox) Log(source string, tick uint64, level entities.LogLevel, msg []byte) {
	o.Logs = append(o.Logs, entities.LogRecord{
		Module:  source,
		Message: msg,
		Tick:    tick,
		Level:   level,
	})
}

// Len returns the number of staged events and log lines.
func (o *Outbox) Len() (events, logs int) {
	return len(o.Events), len(o.Logs)
}

// Truncate drops everything staged after the given marks. Used to discard the
// output of an aborted call.
func (o *Outbox) Truncate(events, logs int) {
	o.Events = o.Events[:events]
	o.Logs = o.Logs[:logs]
	o.next = uint32(events) //nolint:gosec // G115: bounded by emitted count
}

// Reset clears the outbox for reuse.
func (o *Outbox) Reset() {
	o.Events = nil
	o.Logs = nil
	o.next = 0
}
