package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/gers-dev/gers-host/abi"
	"github.com/gers-dev/gers-host/hostfuncs"
	wazeroadapter "github.com/gers-dev/gers-host/infrastructure/wazero"
)

// Runtime owns the wazero runtime that every module of one host shares, and the
// capability table registered in it.
type Runtime struct {
	runtime    wazero.Runtime
	table      *hostfuncs.Table
	constraint *semver.Constraints
	current    *semver.Version
	logger     *zap.Logger
	config     runtimeConfig
	runID      string

	mu     sync.Mutex
	loaded map[string]struct{}
}

// NewRuntime creates a runtime and registers the capability table with it.
func NewRuntime(ctx context.Context, opts ...Option) (*Runtime, error) {
	cfg := defaultRuntimeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.table == nil {
		table, err := hostfuncs.DefaultTable()
		if err != nil {
			return nil, fmt.Errorf("failed to create default capability table: %w", err)
		}
		cfg.table = table
	}

	constraint, err := semver.NewConstraint(cfg.abiConstraint)
	if err != nil {
		return nil, fmt.Errorf("invalid ABI constraint %q: %w", cfg.abiConstraint, err)
	}
	current := semver.MustParse(abi.Version)
	if !constraint.Check(current) {
		return nil, fmt.Errorf("ABI constraint %q excludes the host ABI %s", cfg.abiConstraint, abi.Version)
	}

	rc := wazero.NewRuntimeConfig().WithCustomSections(true)
	if cfg.memoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(cfg.memoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rc)

	runID := uuid.NewString()
	logger := cfg.logger.With(zap.String("run", runID))

	if err := wazeroadapter.RegisterWithRuntime(ctx, rt, cfg.table, wazeroadapter.WithLogger(logger)); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register capabilities: %w", err)
	}

	return &Runtime{
		runtime:    rt,
		table:      cfg.table,
		constraint: constraint,
		current:    current,
		logger:     logger,
		config:     cfg,
		runID:      runID,
		// The capability host module occupies its namespace in the wazero store.
		loaded: map[string]struct{}{cfg.table.Namespace(): {}},
	}, nil
}

// RunID identifies this runtime in logs.
func (r *Runtime) RunID() string {
	return r.runID
}

// Capabilities returns the capability table guests link against.
func (r *Runtime) Capabilities() *hostfuncs.Table {
	return r.table
}

// Close releases every module and the runtime itself.
func (r *Runtime) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

// reserve claims id for a new module.
func (r *Runtime) reserve(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.loaded[id]; exists {
		return false
	}
	r.loaded[id] = struct{}{}
	return true
}

// release frees id after its module is closed or its load failed.
func (r *Runtime) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.loaded, id)
}
