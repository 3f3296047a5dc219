// Command gers-host loads the modules named in a configuration file and drives
// them on the tick loop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gers-dev/gers-host/bus"
	"github.com/gers-dev/gers-host/config"
	"github.com/gers-dev/gers-host/domain/entities"
	"github.com/gers-dev/gers-host/host"
	"github.com/gers-dev/gers-host/host/registry"
	"github.com/gers-dev/gers-host/hostfuncs"
	"github.com/gers-dev/gers-host/log"
	"github.com/gers-dev/gers-host/metrics"
	"github.com/gers-dev/gers-host/scheduler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "gers-host: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("gers-host", flag.ContinueOnError)
	configPath := fs.String("config", "gers.yaml", "Path to the host configuration file")
	ticks := fs.Int("ticks", 0, "Number of ticks to run (0 runs until interrupted)")
	printSchema := fs.Bool("schema", false, "Print the configuration JSON schema and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *printSchema {
		schema, err := config.Schema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, string(schema))
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := log.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log.SetLogger(logger)

	collector := metrics.NewCollector("")
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: collector.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Logger().Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	rt, err := newRuntime(ctx, cfg, collector)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.Background()) }()

	descs, err := cfg.Descriptors(filepath.Dir(*configPath), rt.Capabilities().Names())
	if err != nil {
		return err
	}
	instances := loadModules(ctx, rt, descs)

	b := bus.New(bus.WithLogger(logger.Named("bus")), bus.WithMetrics(collector))
	sched := scheduler.New(b,
		scheduler.WithStep(cfg.Step()),
		scheduler.WithTickRate(cfg.TickRate),
		scheduler.WithWorkers(cfg.Workers),
		scheduler.WithLogger(logger.Named("scheduler")),
		scheduler.WithMetrics(collector),
	)
	defer func() { _ = sched.Close(context.Background()) }()

	priorities := cfg.Priorities()
	for _, inst := range instances {
		if err := sched.Add(inst, scheduler.WithPriority(priorities[inst.ID()])); err != nil {
			return err
		}
	}

	log.Logger().Info("running",
		zap.String("run", rt.RunID()),
		zap.Strings("modules", sched.Modules()),
		zap.Int("ticks", *ticks))
	if err := sched.Run(ctx, *ticks); err != nil {
		return err
	}
	log.Logger().Info("stopped", zap.Uint64("tick", sched.Tick()), zap.Uint64("digest", b.Digest()))
	return nil
}

// loadModules loads descs and logs each rejection in descriptor order.
func loadModules(ctx context.Context, rt *host.Runtime, descs []entities.ModuleDescriptor) []*host.Instance {
	instances, rejected := rt.LoadAll(ctx, descs)
	for _, desc := range descs {
		if loadErr, ok := rejected[desc.ID]; ok {
			log.Logger().Warn("module not scheduled", zap.String("module", desc.ID), zap.Error(loadErr))
		}
	}
	return instances
}

// newRuntime builds the capability table and runtime described by cfg.
func newRuntime(ctx context.Context, cfg *config.Config, collector *metrics.Collector) (*host.Runtime, error) {
	var builtins []hostfuncs.BuiltinOption
	if cfg.StrictEventTypes {
		types := registry.NewRegistry()
		for _, et := range cfg.EventTypes {
			if err := types.Register(et.Tag, et.Name, nil); err != nil {
				return nil, fmt.Errorf("register event type %d: %w", et.Tag, err)
			}
		}
		builtins = append(builtins, hostfuncs.WithEventTypes(types))
	}

	table, err := hostfuncs.NewTable(
		hostfuncs.WithNamespace(cfg.Namespace),
		hostfuncs.WithMiddleware(hostfuncs.PanicRecoveryMiddleware(), collector.CapabilityMiddleware()),
		hostfuncs.WithBundle(hostfuncs.BuiltinBundle(builtins...)),
	)
	if err != nil {
		return nil, err
	}

	return host.NewRuntime(ctx,
		host.WithCapabilities(table),
		host.WithLogger(log.Logger().Named("host")),
		host.WithLogSink(log.NewGuestSink(log.Logger())),
		host.WithMetrics(collector),
		host.WithABIConstraint(cfg.ABIConstraint),
		host.WithMemoryLimitPages(cfg.MaxMemoryPages),
	)
}
