package bus

import (
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gers-dev/gers-host/domain/entities"
	"github.com/gers-dev/gers-host/metrics"
)

func ev(source string, tick uint64, eventType uint32, index uint32, payload string) entities.Event {
	return entities.Event{Source: source, Tick: tick, Type: eventType, Index: index, Payload: []byte(payload)}
}

func payloads(events []entities.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e.Payload)
	}
	return out
}

func TestBus_PublishDrain(t *testing.T) {
	b := New()
	require.NoError(t, b.Subscribe("a"))
	require.NoError(t, b.Subscribe("b"))

	committed := b.Publish([]entities.Event{
		ev("", 1, 1, 0, "host"),
		ev("x", 1, 1, 0, "x0"),
		ev("x", 1, 1, 1, "x1"),
	})
	require.Len(t, committed, 3)
	assert.Equal(t, []uint64{0, 1, 2}, []uint64{committed[0].Seq, committed[1].Seq, committed[2].Seq})

	got, err := b.Drain("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"host", "x0", "x1"}, payloads(got))

	// At most once.
	got, err = b.Drain("a")
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Equal(t, 3, b.Pending("b"))
	got, err = b.Drain("b")
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 0, b.Retained())
}

func TestBus_SubscribeSeesOnlyLaterEvents(t *testing.T) {
	b := New()
	require.NoError(t, b.Subscribe("early"))
	b.Publish([]entities.Event{ev("x", 1, 1, 0, "before")})

	require.NoError(t, b.Subscribe("late"))
	b.Publish([]entities.Event{ev("x", 2, 1, 0, "after")})

	got, err := b.Drain("late")
	require.NoError(t, err)
	assert.Equal(t, []string{"after"}, payloads(got))

	got, err = b.Drain("early")
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "after"}, payloads(got))
}

func TestBus_Filter(t *testing.T) {
	b := New()
	require.NoError(t, b.Subscribe("hello-only", entities.EventHello))

	b.Publish([]entities.Event{
		ev("x", 1, entities.EventNoOp, 0, "noop"),
		ev("x", 1, entities.EventHello, 1, "hello"),
	})

	got, err := b.Drain("hello-only")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, payloads(got))
	assert.Equal(t, 0, b.Retained())
}

func TestBus_Compaction(t *testing.T) {
	b := New()
	require.NoError(t, b.Subscribe("fast"))
	require.NoError(t, b.Subscribe("slow"))

	for tick := uint64(1); tick <= 3; tick++ {
		b.Publish([]entities.Event{ev("x", tick, 1, 0, "e")})
		_, err := b.Drain("fast")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, b.Retained())

	got, err := b.Drain("slow")
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 0, b.Retained())

	// Unsubscribing the laggard releases what it held.
	b.Publish([]entities.Event{ev("x", 4, 1, 0, "e")})
	_, err = b.Drain("fast")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Retained())
	b.Unsubscribe("slow")
	assert.Equal(t, 0, b.Retained())
	assert.False(t, b.Subscribed("slow"))
	assert.Equal(t, uint64(4), b.Committed())
}

func TestBus_NoConsumers(t *testing.T) {
	b := New()
	b.Publish([]entities.Event{ev("x", 1, 1, 0, "lost")})
	assert.Equal(t, 0, b.Retained())

	require.NoError(t, b.Subscribe("a"))
	b.Publish([]entities.Event{ev("x", 2, 1, 0, "kept")})
	got, err := b.Drain("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, payloads(got))
	assert.Equal(t, uint64(1), got[0].Seq)
}

func TestBus_Errors(t *testing.T) {
	b := New()
	require.Error(t, b.Subscribe(""))
	require.NoError(t, b.Subscribe("a"))

	err := b.Subscribe("a")
	assert.True(t, stdErrors.Is(err, ErrDuplicateConsumer))

	_, err = b.Drain("nobody")
	assert.True(t, stdErrors.Is(err, ErrUnknownConsumer))
	assert.Equal(t, 0, b.Pending("nobody"))

	// Unknown unsubscribe is a no-op.
	b.Unsubscribe("nobody")
}

func TestBus_Digest(t *testing.T) {
	run := func(batches ...[]entities.Event) uint64 {
		b := New(WithMetrics(metrics.NewCollector("test")))
		for _, batch := range batches {
			b.Publish(batch)
		}
		return b.Digest()
	}

	one := []entities.Event{ev("a", 1, 1, 0, "x"), ev("b", 1, 1, 0, "y")}
	swapped := []entities.Event{ev("b", 1, 1, 0, "y"), ev("a", 1, 1, 0, "x")}

	assert.Equal(t, run(one), run(one))
	assert.NotEqual(t, run(one), run(swapped))
	assert.NotEqual(t, run(one), run(one, one))
	assert.Equal(t, New().Digest(), run())
}
