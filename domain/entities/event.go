package entities

import (
	"encoding/binary"
	"fmt"
)

// HostSource is the Source of events published by the host rather than a module.
const HostSource = ""

// Event types shared by host and guests.
const (
	EventNoOp  uint32 = 0
	EventHello uint32 = 1
)

// Event is one message on the bus. It is immutable once created; only the bus
// assigns Seq.
type Event struct {
	// Payload is opaque to the host.
	Payload []byte `json:"payload"`

	// Source is the producing module id, or HostSource.
	Source string `json:"source"`

	// Tick is the tick the event was produced on.
	Tick uint64 `json:"tick"`

	// Seq is the bus-wide delivery position, assigned at publish.
	Seq uint64 `json:"seq"`

	// Type is the event type tag.
	Type uint32 `json:"type"`

	// Index is the emission sequence within the producing call.
	Index uint32 `json:"index"`
}

// FromHost reports whether the event was published by the host.
func (e Event) FromHost() bool {
	return e.Source == HostSource
}

// Clone returns a copy of the event with its own payload buffer.
func (e Event) Clone() Event {
	c := e
	if e.Payload != nil {
		c.Payload = append([]byte(nil), e.Payload...)
	}
	return c
}

// HelloEvent is the payload of EventHello. Its guest-side layout is
// {data u32, padding u8, _ u8, div u16}, little endian, 8 bytes.
type HelloEvent struct {
	Data    uint32 `json:"data"`
	Padding uint8  `json:"padding"`
	Div     uint16 `json:"div"`
}

// HelloEventSize is the encoded size of a HelloEvent.
const HelloEventSize = 8

// MarshalBinary encodes the event in its guest-side layout.
func (h HelloEvent) MarshalBinary() ([]byte, error) {
	b := make([]byte, HelloEventSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Data)
	b[4] = h.Padding
	binary.LittleEndian.PutUint16(b[6:8], h.Div)
	return b, nil
}

// UnmarshalBinary decodes the guest-side layout.
func (h *HelloEvent) UnmarshalBinary(b []byte) error {
	if len(b) != HelloEventSize {
		return fmt.Errorf("hello event: want %d bytes, got %d", HelloEventSize, len(b))
	}
	h.Data = binary.LittleEndian.Uint32(b[0:4])
	h.Padding = b[4]
	h.Div = binary.LittleEndian.Uint16(b[6:8])
	return nil
}
