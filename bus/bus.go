// Package bus implements the event bus: an ordered log of committed events with
// an independent read cursor per consumer.
//
// Events become visible only when the scheduler publishes a tick's batch. Each
// consumer drains the events committed since it subscribed, in commit order, at
// most once. Storage is compacted once every consumer has read past a prefix.
package bus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/gers-dev/gers-host/domain/entities"
	"github.com/gers-dev/gers-host/metrics"
)

var (
	// ErrUnknownConsumer is returned for operations on a consumer that is not subscribed.
	ErrUnknownConsumer = errors.New("unknown consumer")

	// ErrDuplicateConsumer is returned when subscribing an id twice.
	ErrDuplicateConsumer = errors.New("consumer already subscribed")
)

type consumer struct {
	filter map[uint32]struct{} // nil accepts every type
	cursor uint64              // Seq of the next event to read
}

func (c *consumer) accepts(eventType uint32) bool {
	if c.filter == nil {
		return true
	}
	_, ok := c.filter[eventType]
	return ok
}

type busConfig struct {
	logger  *zap.Logger
	metrics *metrics.Collector
}

// Option configures a Bus.
type Option func(*busConfig)

// WithLogger sets the bus logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *busConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records bus traffic into collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *busConfig) {
		c.metrics = collector
	}
}

// Bus is safe for concurrent use.
type Bus struct {
	config    busConfig
	consumers map[string]*consumer
	digest    *xxhash.Digest
	events    []entities.Event // events[0] has Seq == base
	base      uint64
	next      uint64
	mu        sync.Mutex
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	cfg := busConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Bus{
		config:    cfg,
		consumers: make(map[string]*consumer),
		digest:    xxhash.New(),
	}
}

// Subscribe registers a consumer. With no types it receives every event;
// otherwise only events of the listed types. A consumer sees only events
// published after it subscribed.
func (b *Bus) Subscribe(id string, types ...uint32) error {
	if id == "" {
		return fmt.Errorf("consumer id cannot be empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.consumers[id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateConsumer, id)
	}

	c := &consumer{cursor: b.next}
	if len(types) > 0 {
		c.filter = make(map[uint32]struct{}, len(types))
		for _, t := range types {
			c.filter[t] = struct{}{}
		}
	}
	b.consumers[id] = c
	b.config.logger.Debug("consumer subscribed", zap.String("consumer", id), zap.Uint64s("types", toUint64s(types)))
	return nil
}

// Unsubscribe removes a consumer and drops its undelivered events.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.consumers[id]; !exists {
		return
	}
	delete(b.consumers, id)
	b.config.metrics.ForgetConsumer(id)
	b.compact()
	b.config.logger.Debug("consumer unsubscribed", zap.String("consumer", id))
}

// Subscribed reports whether id is a consumer.
func (b *Bus) Subscribed(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.consumers[id]
	return ok
}

// Publish commits a batch in order, assigning each event its Seq. It returns the
// events as committed.
func (b *Bus) Publish(batch []entities.Event) []entities.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	committed := make([]entities.Event, len(batch))
	for i, ev := range batch {
		ev.Seq = b.next
		b.next++
		b.hash(ev)
		committed[i] = ev
	}

	if len(b.consumers) > 0 {
		b.events = append(b.events, committed...)
	} else {
		// Nobody can ever read these.
		b.base = b.next
	}

	b.config.metrics.RecordPublish(len(committed))
	for id, c := range b.consumers {
		b.config.metrics.RecordPending(id, int(b.next-c.cursor)) //nolint:gosec // G115: bounded by retained events
	}
	return committed
}

// Drain returns and removes every event available to the consumer since its last
// drain, in commit order.
func (b *Bus) Drain(id string) ([]entities.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.consumers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConsumer, id)
	}

	var out []entities.Event
	for _, ev := range b.events[c.cursor-b.base:] {
		if c.accepts(ev.Type) {
			out = append(out, ev)
		}
	}
	c.cursor = b.next
	b.config.metrics.RecordPending(id, 0)
	b.compact()
	return out, nil
}

// Pending returns the number of events the consumer has yet to drain, before
// filtering.
func (b *Bus) Pending(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.consumers[id]
	if !ok {
		return 0
	}
	return int(b.next - c.cursor) //nolint:gosec // G115: bounded by retained events
}

// Retained returns the number of events held for consumers that have not yet
// drained them.
func (b *Bus) Retained() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Committed returns the number of events ever published.
func (b *Bus) Committed() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}

// Digest returns a running hash over every committed event. Two runs fed the same
// inputs produce the same digest.
func (b *Bus) Digest() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.digest.Sum64()
}

// compact drops the prefix every consumer has read. Callers hold mu.
func (b *Bus) compact() {
	low := b.next
	for _, c := range b.consumers {
		if c.cursor < low {
			low = c.cursor
		}
	}
	if low == b.base {
		return
	}
	drop := low - b.base
	remaining := copy(b.events, b.events[drop:])
	clear(b.events[remaining:])
	b.events = b.events[:remaining]
	b.base = low
}

// hash folds one event into the digest. Callers hold mu.
func (b *Bus) hash(ev entities.Event) {
	var hdr [36]byte
	binary.LittleEndian.PutUint64(hdr[0:8], ev.Seq)
	binary.LittleEndian.PutUint64(hdr[8:16], ev.Tick)
	binary.LittleEndian.PutUint32(hdr[16:20], ev.Type)
	binary.LittleEndian.PutUint32(hdr[20:24], ev.Index)
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(len(ev.Source)))  //nolint:gosec // G115: ids are short
	binary.LittleEndian.PutUint64(hdr[28:36], uint64(len(ev.Payload))) //nolint:gosec // G115: non-negative
	_, _ = b.digest.Write(hdr[:])
	_, _ = b.digest.WriteString(ev.Source)
	_, _ = b.digest.Write(ev.Payload)
}

func toUint64s(in []uint32) []uint64 {
	out := make([]uint64, len(in))
	for i, v := range in {
		out[i] = uint64(v)
	}
	return out
}
