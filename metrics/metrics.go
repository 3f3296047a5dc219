// Package metrics provides host runtime metrics collection.
// It wraps Prometheus collectors to provide structured telemetry for module
// loading, tick dispatch, capability calls and bus traffic.
//
// A nil *Collector is valid and records nothing.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gers-dev/gers-host/hostfuncs"
)

// Call outcomes recorded per guest call.
const (
	OutcomeOK    = "ok"
	OutcomeAbort = "abort"
	OutcomeTrap  = "trap"
)

// Collector provides host metrics collection.
type Collector struct {
	registry *prometheus.Registry

	// Loader metrics
	loads *prometheus.CounterVec

	// Scheduler metrics
	ticks        prometheus.Counter
	tickLatency  prometheus.Histogram
	calls        *prometheus.CounterVec
	liveModules  prometheus.Gauge
	faultedTotal prometheus.Counter

	// Capability metrics
	capabilityCalls *prometheus.CounterVec

	// Bus metrics
	busPublished prometheus.Counter
	busPending   *prometheus.GaugeVec
}

// NewCollector creates a new collector with its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "gers"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.loads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "loads_total",
			Help:      "Total number of module load attempts by result (ok or the rejection kind)",
		},
		[]string{"result"},
	)

	c.ticks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total number of completed ticks",
		},
	)

	c.tickLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent dispatching and committing one tick",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
		},
	)

	c.calls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "calls_total",
			Help:      "Total number of guest calls by module and outcome (ok, abort, trap)",
		},
		[]string{"module", "outcome"},
	)

	c.liveModules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "live_modules",
			Help:      "Number of scheduled, non-faulted modules",
		},
	)

	c.faultedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "faults_total",
			Help:      "Total number of modules faulted by a trap",
		},
	)

	c.capabilityCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capability",
			Name:      "calls_total",
			Help:      "Total number of capability invocations by capability and result",
		},
		[]string{"capability", "result"},
	)

	c.busPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_total",
			Help:      "Total number of events committed to the bus",
		},
	)

	c.busPending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "pending_events",
			Help:      "Events committed but not yet drained, per consumer",
		},
		[]string{"consumer"},
	)

	c.registry.MustRegister(
		c.loads,
		c.ticks,
		c.tickLatency,
		c.calls,
		c.liveModules,
		c.faultedTotal,
		c.capabilityCalls,
		c.busPublished,
		c.busPending,
	)

	return c
}

// Registry returns the Prometheus registry holding the collectors.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler returns an HTTP handler exposing the collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordLoad records a load attempt. result is "ok" or the rejection kind.
func (c *Collector) RecordLoad(result string) {
	if c == nil {
		return
	}
	c.loads.WithLabelValues(result).Inc()
}

// RecordTick records a completed tick.
func (c *Collector) RecordTick(duration time.Duration, live int) {
	if c == nil {
		return
	}
	c.ticks.Inc()
	c.tickLatency.Observe(duration.Seconds())
	c.liveModules.Set(float64(live))
}

// RecordCall records the outcome of one module's tick.
func (c *Collector) RecordCall(module, outcome string) {
	if c == nil {
		return
	}
	c.calls.WithLabelValues(module, outcome).Inc()
	if outcome == OutcomeTrap {
		c.faultedTotal.Inc()
	}
}

// RecordCapability records one capability invocation.
func (c *Collector) RecordCapability(name string, err error) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.capabilityCalls.WithLabelValues(name, result).Inc()
}

// RecordPublish records a committed batch.
func (c *Collector) RecordPublish(events int) {
	if c == nil {
		return
	}
	c.busPublished.Add(float64(events))
}

// RecordPending records a consumer's backlog.
func (c *Collector) RecordPending(consumer string, pending int) {
	if c == nil {
		return
	}
	c.busPending.WithLabelValues(consumer).Set(float64(pending))
}

// ForgetConsumer drops a consumer's backlog series.
func (c *Collector) ForgetConsumer(consumer string) {
	if c == nil {
		return
	}
	c.busPending.DeleteLabelValues(consumer)
}

// CapabilityMiddleware returns a table middleware counting capability calls.
func (c *Collector) CapabilityMiddleware() hostfuncs.Middleware {
	return func(next hostfuncs.Handler) hostfuncs.Handler {
		return func(ctx context.Context, call *hostfuncs.Call, stack []uint64) error {
			err := next(ctx, call, stack)
			c.RecordCapability(hostfuncs.FunctionName(ctx), err)
			return err
		}
	}
}
