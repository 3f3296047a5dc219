package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/gers-dev/gers-host/bus"
	"github.com/gers-dev/gers-host/domain/entities"
	domainerrors "github.com/gers-dev/gers-host/domain/errors"
	"github.com/gers-dev/gers-host/hostfuncs"
	"github.com/gers-dev/gers-host/log"
	"github.com/gers-dev/gers-host/metrics"
)

// Module is a loaded module as the scheduler drives it. *host.Instance
// implements it.
type Module interface {
	ID() string
	ReceivesEvents() bool
	NewCall(tick uint64, dt float32, outbox *hostfuncs.Outbox) *hostfuncs.Call
	Deliver(ctx context.Context, call *hostfuncs.Call, ev entities.Event) (uint32, error)
	BumpReset(ctx context.Context, call *hostfuncs.Call) (uint32, error)
	Update(ctx context.Context, call *hostfuncs.Call) error
	Faulted() bool
	Fault()
	Close(ctx context.Context) error
}

type entry struct {
	mod      Module
	priority int
	order    int
}

// Scheduler owns the ordered module set and the event bus.
type Scheduler struct {
	config  schedulerConfig
	bus     *bus.Bus
	limiter *rate.Limiter
	state   atomic.Int32

	mu      sync.Mutex // serializes ticks and membership changes
	entries []*entry
	added   int
	tick    uint64

	hostMu    sync.Mutex
	hostQueue []entities.Event
}

// New creates a scheduler committing to b.
func New(b *bus.Bus, opts ...Option) *Scheduler {
	cfg := defaultSchedulerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logSink == nil {
		cfg.logSink = log.NewGuestSink(cfg.logger)
	}

	s := &Scheduler{config: cfg, bus: b}
	if cfg.tickRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.tickRate), 1)
	}
	return s
}

// Bus returns the scheduler's event bus.
func (s *Scheduler) Bus() *bus.Bus {
	return s.bus
}

// State returns the current phase of the tick cycle.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Tick returns the number of the last committed tick. Zero before the first.
func (s *Scheduler) Tick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Add registers a module. Modules exporting the event hooks are subscribed to the
// bus and receive events committed from the next tick on.
func (s *Scheduler) Add(mod Module, opts ...AddOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := mod.ID()
	for _, e := range s.entries {
		if e.mod.ID() == id {
			return fmt.Errorf("module %q already scheduled", id)
		}
	}
	if mod.Faulted() {
		return fmt.Errorf("module %q is faulted", id)
	}

	e := &entry{mod: mod, order: s.added}
	for _, opt := range opts {
		opt(e)
	}
	if mod.ReceivesEvents() {
		if err := s.bus.Subscribe(id); err != nil {
			return fmt.Errorf("subscribe %q: %w", id, err)
		}
	}

	s.added++
	s.entries = append(s.entries, e)
	sort.SliceStable(s.entries, func(i, j int) bool {
		if s.entries[i].priority != s.entries[j].priority {
			return s.entries[i].priority < s.entries[j].priority
		}
		return s.entries[i].order < s.entries[j].order
	})

	s.config.logger.Info("module scheduled", zap.String("module", id), zap.Int("priority", e.priority))
	return nil
}

// Remove unschedules and closes a module.
func (s *Scheduler) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.mod.ID() != id {
			continue
		}
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		s.bus.Unsubscribe(id)
		return e.mod.Close(ctx)
	}
	return fmt.Errorf("module %q not scheduled", id)
}

// Modules returns the ids of live modules in dispatch order.
func (s *Scheduler) Modules() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, e := range s.entries {
		if !e.mod.Faulted() {
			ids = append(ids, e.mod.ID())
		}
	}
	return ids
}

// Publish stages host-originated events. They are committed at the next tick,
// ahead of every module's events.
func (s *Scheduler) Publish(events ...entities.Event) {
	s.hostMu.Lock()
	defer s.hostMu.Unlock()
	for _, ev := range events {
		ev = ev.Clone()
		ev.Source = entities.HostSource
		ev.Seq = 0
		s.hostQueue = append(s.hostQueue, ev)
	}
}

// Step runs one tick with the configured step.
func (s *Scheduler) Step(ctx context.Context) (*TickReport, error) {
	return s.StepWith(ctx, s.config.step)
}

// Run runs n ticks, or until ctx is done when n <= 0, paced by the configured
// tick rate.
func (s *Scheduler) Run(ctx context.Context, n int) error {
	for i := 0; n <= 0 || i < n; i++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if _, err := s.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every scheduled module.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, e := range s.entries {
		s.bus.Unsubscribe(e.mod.ID())
		if err := e.mod.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", e.mod.ID(), err))
		}
	}
	s.entries = nil
	return errors.Join(errs...)
}

// outcome is one module's staged output for a tick.
type outcome struct {
	events   []entities.Event
	logs     []entities.LogRecord
	failures []Failure
	declined int
	fatal    bool
}

// StepWith runs one tick with an explicit delta-time.
func (s *Scheduler) StepWith(ctx context.Context, dt float32) (*TickReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	s.tick++
	tick := s.tick
	s.state.Store(int32(Dispatching))

	var live []Module
	for _, e := range s.entries {
		if !e.mod.Faulted() {
			live = append(live, e.mod)
		}
	}

	tc := &entities.TickContext{Tick: tick, DeltaTime: dt, Inbox: make(map[string][]entities.Event, len(live))}
	for _, mod := range live {
		if !mod.ReceivesEvents() {
			continue
		}
		events, err := s.bus.Drain(mod.ID())
		if err != nil {
			s.state.Store(int32(AwaitingTick))
			return nil, fmt.Errorf("drain inbox of %q: %w", mod.ID(), err)
		}
		tc.Inbox[mod.ID()] = events
	}

	results := make([]outcome, len(live))
	if s.config.workers <= 1 || len(live) <= 1 {
		for i, mod := range live {
			results[i] = s.dispatch(ctx, tc, mod)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.config.workers)
		for i, mod := range live {
			i, mod := i, mod
			g.Go(func() error {
				results[i] = s.dispatch(ctx, tc, mod)
				return nil
			})
		}
		_ = g.Wait()
	}

	s.state.Store(int32(Committing))
	report := s.commit(ctx, tc, live, results)
	s.state.Store(int32(AwaitingTick))

	s.config.metrics.RecordTick(time.Since(start), len(live)-len(report.Faulted()))
	if s.config.observer != nil {
		s.config.observer(report)
	}
	return report, nil
}

// dispatch runs one module's share of a tick: allocator reset, event delivery,
// update. Each guest call stages into the shared outbox; an aborted call's output
// is cut back off, a trap discards everything the module staged this tick.
func (s *Scheduler) dispatch(ctx context.Context, tc *entities.TickContext, mod Module) outcome {
	var out outcome
	outbox := &hostfuncs.Outbox{}
	call := mod.NewCall(tc.Tick, tc.DeltaTime, outbox)

	// guard runs one guest call and reports whether the module may continue.
	guard := func(fn func() error) bool {
		events, logs := outbox.Len()
		err := fn()
		if err == nil {
			return true
		}
		if domainerrors.IsFatal(err) {
			out.failures = append(out.failures, Failure{ModuleID: mod.ID(), Err: err, Fatal: true})
			out.fatal = true
			return false
		}
		outbox.Truncate(events, logs)
		out.failures = append(out.failures, Failure{ModuleID: mod.ID(), Err: err})
		return true
	}

	if !guard(func() error { _, err := mod.BumpReset(ctx, call); return err }) {
		return out
	}

	for _, ev := range tc.Inbox[mod.ID()] {
		ok := guard(func() error {
			status, err := mod.Deliver(ctx, call, ev)
			if err == nil && status != 0 {
				out.declined++
			}
			return err
		})
		if !ok {
			return out
		}
	}

	if !guard(func() error { return mod.Update(ctx, call) }) {
		return out
	}

	out.events = outbox.Events
	out.logs = outbox.Logs
	return out
}

// commit publishes the tick's batch and flushes guest logs. Modules that faulted
// this tick are closed and dropped from the schedule.
func (s *Scheduler) commit(ctx context.Context, tc *entities.TickContext, live []Module, results []outcome) *TickReport {
	tick := tc.Tick
	report := &TickReport{Tick: tick, DeltaTime: tc.DeltaTime}

	s.hostMu.Lock()
	batch := make([]entities.Event, 0, len(s.hostQueue))
	for i, ev := range s.hostQueue {
		ev.Tick = tick
		ev.Index = uint32(i) //nolint:gosec // G115: bounded by queue length
		batch = append(batch, ev)
	}
	s.hostQueue = nil
	s.hostMu.Unlock()

	for i, mod := range live {
		res := results[i]
		id := mod.ID()
		report.Dispatched = append(report.Dispatched, id)
		report.Failures = append(report.Failures, res.failures...)
		report.Declined += res.declined

		for _, f := range res.failures {
			fields := []zap.Field{
				zap.String("module", id),
				zap.Uint64("tick", tick),
				zap.String("kind", f.Detail().Type),
				zap.Error(f.Err),
			}
			if f.Fatal {
				s.config.logger.Error("module faulted", fields...)
			} else {
				s.config.logger.Warn("guest call aborted", fields...)
			}
		}

		switch {
		case res.fatal:
			mod.Fault()
			s.bus.Unsubscribe(id)
			s.drop(id)
			if err := mod.Close(context.WithoutCancel(ctx)); err != nil {
				s.config.logger.Warn("close faulted module", zap.String("module", id), zap.Error(err))
			}
			s.config.metrics.RecordCall(id, metrics.OutcomeTrap)
			continue
		case len(res.failures) > 0:
			s.config.metrics.RecordCall(id, metrics.OutcomeAbort)
		default:
			s.config.metrics.RecordCall(id, metrics.OutcomeOK)
		}
		if res.declined > 0 {
			s.config.logger.Warn("events declined",
				zap.String("module", id), zap.Uint64("tick", tick), zap.Int("count", res.declined))
		}

		batch = append(batch, res.events...)
		report.Logs = append(report.Logs, res.logs...)
	}

	report.Events = s.bus.Publish(batch)
	for _, rec := range report.Logs {
		s.config.logSink.WriteGuestLog(rec)
	}
	return report
}

// drop removes id from the schedule. Callers hold s.mu.
func (s *Scheduler) drop(id string) {
	for i, e := range s.entries {
		if e.mod.ID() == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}
