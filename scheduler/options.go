package scheduler

import (
	"go.uber.org/zap"

	"github.com/gers-dev/gers-host/domain/ports"
	"github.com/gers-dev/gers-host/metrics"
)

// DefaultStep is the fixed simulated time step (60 Hz).
const DefaultStep float32 = 1.0 / 60.0

// schedulerConfig holds configuration for the Scheduler.
type schedulerConfig struct {
	logger   *zap.Logger
	metrics  *metrics.Collector
	logSink  ports.LogSink
	observer func(*TickReport)
	tickRate float64
	workers  int
	step     float32
}

func defaultSchedulerConfig() schedulerConfig {
	return schedulerConfig{
		logger:  zap.NewNop(),
		workers: 1,
		step:    DefaultStep,
	}
}

// Option configures a Scheduler.
type Option func(*schedulerConfig)

// WithStep sets the delta-time supplied by Step.
func WithStep(dt float32) Option {
	return func(c *schedulerConfig) {
		c.step = dt
	}
}

// WithTickRate paces Run to at most hz ticks per wall-clock second. Zero runs
// unpaced. Pacing never changes what a tick computes.
func WithTickRate(hz float64) Option {
	return func(c *schedulerConfig) {
		c.tickRate = hz
	}
}

// WithWorkers dispatches up to n modules concurrently. Default 1 (sequential).
func WithWorkers(n int) Option {
	return func(c *schedulerConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *schedulerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records tick and call metrics into collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *schedulerConfig) {
		c.metrics = collector
	}
}

// WithLogSink receives committed guest log lines in commit order.
// Default: a log.GuestSink over the scheduler's logger.
func WithLogSink(sink ports.LogSink) Option {
	return func(c *schedulerConfig) {
		c.logSink = sink
	}
}

// WithTickObserver is called with every tick's report, after commit.
func WithTickObserver(fn func(*TickReport)) Option {
	return func(c *schedulerConfig) {
		c.observer = fn
	}
}

// AddOption configures how a module is scheduled.
type AddOption func(*entry)

// WithPriority sets an explicit dispatch priority. Lower runs first; ties keep
// registration order. Default 0.
func WithPriority(p int) AddOption {
	return func(e *entry) {
		e.priority = p
	}
}
