package host

import (
	"go.uber.org/zap"

	"github.com/gers-dev/gers-host/abi"
	"github.com/gers-dev/gers-host/domain/ports"
	"github.com/gers-dev/gers-host/hostfuncs"
	"github.com/gers-dev/gers-host/metrics"
)

// runtimeConfig holds configuration for the Runtime.
type runtimeConfig struct {
	table            *hostfuncs.Table
	logger           *zap.Logger
	metrics          *metrics.Collector
	logSink          ports.LogSink
	abiConstraint    string
	memoryLimitPages uint32
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		logger:        zap.NewNop(),
		abiConstraint: abi.DefaultConstraint,
	}
}

// Option defines a functional option for configuring the Runtime.
type Option func(*runtimeConfig)

// WithCapabilities configures the runtime with a capability table.
// Default: hostfuncs.DefaultTable().
func WithCapabilities(table *hostfuncs.Table) Option {
	return func(c *runtimeConfig) {
		c.table = table
	}
}

// WithLogger sets the runtime's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *runtimeConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records loader metrics into collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *runtimeConfig) {
		c.metrics = collector
	}
}

// WithLogSink receives guest log lines written during the init hook.
// Default: discard.
func WithLogSink(sink ports.LogSink) Option {
	return func(c *runtimeConfig) {
		c.logSink = sink
	}
}

// WithABIConstraint sets the semver constraint a module's declared ABI version
// must satisfy. Default: abi.DefaultConstraint.
func WithABIConstraint(constraint string) Option {
	return func(c *runtimeConfig) {
		c.abiConstraint = constraint
	}
}

// WithMemoryLimitPages caps every module's linear memory at n 64KiB pages.
// Zero keeps wazero's default (65536 pages).
func WithMemoryLimitPages(n uint32) Option {
	return func(c *runtimeConfig) {
		c.memoryLimitPages = n
	}
}
