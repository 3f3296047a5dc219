package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantSet(t *testing.T) {
	g := NewGrantSet("log_info", "", "emit_event", "log_info")

	assert.True(t, g.Has("log_info"))
	assert.True(t, g.Has("emit_event"))
	assert.False(t, g.Has(""))
	assert.False(t, g.Has("get_delta_time"))
	assert.Equal(t, []string{"emit_event", "log_info"}, g.Names())
}

func TestEventClone(t *testing.T) {
	e := Event{Type: 3, Payload: []byte{1, 2, 3}, Source: "a"}
	c := e.Clone()
	c.Payload[0] = 9

	assert.Equal(t, byte(1), e.Payload[0])
	assert.False(t, e.FromHost())
	assert.True(t, Event{}.FromHost())
}

func TestErrorDetail(t *testing.T) {
	d := &ErrorDetail{Type: "trap", Code: "__gers_update", Message: "unreachable"}
	assert.Equal(t, "trap/__gers_update: unreachable", d.Error())
	assert.Equal(t, "bounds: out", (&ErrorDetail{Type: "bounds", Message: "out"}).Error())

	var nilDetail *ErrorDetail
	assert.Equal(t, "", nilDetail.Error())
	assert.Equal(t, "boom", (&ErrorDetail{Type: "internal", Message: "boom"}).Error())
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "info", LogInfo.String())
	assert.Equal(t, "warn", LogWarn.String())
	assert.Equal(t, "error", LogError.String())
}

func TestHelloEventBinary(t *testing.T) {
	in := HelloEvent{Data: 0xdeadbeef, Padding: 7, Div: 300}
	b, err := in.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xef, 0xbe, 0xad, 0xde, 7, 0, 0x2c, 0x01}, b)

	var out HelloEvent
	require.NoError(t, out.UnmarshalBinary(b))
	assert.Equal(t, in, out)

	assert.Error(t, out.UnmarshalBinary(b[:4]))
}
