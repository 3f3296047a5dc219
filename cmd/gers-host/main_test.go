package main

import (
	"bytes"
	"context"
	stdErrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gers-dev/gers-host/abi"
	"github.com/gers-dev/gers-host/config"
	"github.com/gers-dev/gers-host/domain/entities"
	"github.com/gers-dev/gers-host/domain/errors"
	"github.com/gers-dev/gers-host/internal/wasmtest"
	"github.com/gers-dev/gers-host/log"
	"github.com/gers-dev/gers-host/metrics"
)

// observeLogs routes the package logger to an observer for the test.
func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := log.Logger()
	log.SetLogger(zap.New(core))
	t.Cleanup(func() { log.SetLogger(prev) })
	return logs
}

func writeConfig(t *testing.T, body string, modules map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, bin := range modules {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), bin, 0o600))
	}
	path := filepath.Join(dir, "gers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRun_Ticks(t *testing.T) {
	path := writeConfig(t, `
log_level: error
workers: 2
event_types:
  - {tag: 7, name: Score}
modules:
  - id: greeter
    path: greeter.wasm
    grants: ["log_*"]
  - id: scorer
    path: scorer.wasm
    grants: [emit_event]
  - id: broken
    path: broken.wasm
`, map[string][]byte{
		"greeter.wasm": wasmtest.Logger("Hello, World!"),
		"scorer.wasm":  wasmtest.Emitter(7, "1"),
		"broken.wasm":  wasmtest.NoMemory(),
	})

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-config", path, "-ticks", "3"}, &out))
}

func TestRun_Schema(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-schema"}, &out))
	assert.Contains(t, out.String(), "step_seconds")
}

func TestRun_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "workers: 0\n", nil)

	err := run(context.Background(), []string{"-config", path}, &bytes.Buffer{})
	require.Error(t, err)
	var ce *errors.ConfigError
	require.True(t, stdErrors.As(err, &ce))
	assert.Equal(t, "workers", ce.Field)
}

func TestRun_Cancelled(t *testing.T) {
	path := writeConfig(t, "log_level: error\n", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := run(ctx, []string{"-config", path}, &bytes.Buffer{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_BadFlag(t *testing.T) {
	require.Error(t, run(context.Background(), []string{"-nope"}, &bytes.Buffer{}))
}

func TestNewRuntime_InitLogs(t *testing.T) {
	logs := observeLogs(t)
	ctx := context.Background()

	rt, err := newRuntime(ctx, config.Default(), metrics.NewCollector(""))
	require.NoError(t, err)
	defer func() { _ = rt.Close(ctx) }()

	_, err = rt.Load(ctx, entities.ModuleDescriptor{
		ID:     "warmup",
		Binary: wasmtest.InitLogger("ready"),
		Grants: []string{abi.CapLogInfo},
	})
	require.NoError(t, err)

	guest := logs.FilterMessage("ready").All()
	require.Len(t, guest, 1)
	assert.Equal(t, "warmup", guest[0].ContextMap()["module"])
}

func TestLoadModules_RejectionsInOrder(t *testing.T) {
	logs := observeLogs(t)
	ctx := context.Background()

	rt, err := newRuntime(ctx, config.Default(), metrics.NewCollector(""))
	require.NoError(t, err)
	defer func() { _ = rt.Close(ctx) }()

	instances := loadModules(ctx, rt, []entities.ModuleDescriptor{
		{ID: "zeta", Binary: wasmtest.NoMemory()},
		{ID: "alpha", Binary: wasmtest.NoEntrypoint()},
		{ID: "ok", Binary: wasmtest.Minimal()},
		{ID: "mid", Binary: []byte("not wasm")},
	})
	require.Len(t, instances, 1)
	assert.Equal(t, "ok", instances[0].ID())

	var ids []string
	for _, entry := range logs.FilterMessage("module not scheduled").All() {
		ids = append(ids, entry.ContextMap()["module"].(string))
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, ids)
}
