package host

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/gers-dev/gers-host/abi"
	"github.com/gers-dev/gers-host/domain/entities"
	"github.com/gers-dev/gers-host/domain/errors"
	"github.com/gers-dev/gers-host/hostfuncs"
	wazeroadapter "github.com/gers-dev/gers-host/infrastructure/wazero"
)

// Load validates a module against the host ABI and instantiates it.
//
// Checks run in a fixed order and the first failure is returned as a
// *errors.LoadError: compile, duplicate id, ABI version, memory export,
// entrypoint, imports (resolution, then grants), optional hooks, instantiation,
// and finally the optional init hook. No partially loaded module is observable.
func (r *Runtime) Load(ctx context.Context, desc entities.ModuleDescriptor) (*Instance, error) {
	inst, err := r.load(ctx, desc)
	if err != nil {
		result := "error"
		var le *errors.LoadError
		if stdErrors.As(err, &le) {
			result = string(le.Kind)
		}
		r.config.metrics.RecordLoad(result)
		r.logger.Warn("module rejected", zap.String("module", desc.ID), zap.Error(err))
		return nil, err
	}

	r.config.metrics.RecordLoad("ok")
	r.logger.Info("module loaded",
		zap.String("module", desc.ID),
		zap.String("abi", inst.ABIVersion()),
		zap.Strings("grants", inst.Grants().Names()))
	return inst, nil
}

// LoadAll loads descriptors in order. Accepted instances are returned in input
// order; rejections are keyed by module id. One module's failure never affects
// another's load.
func (r *Runtime) LoadAll(ctx context.Context, descs []entities.ModuleDescriptor) ([]*Instance, map[string]error) {
	var instances []*Instance
	rejected := make(map[string]error)
	for _, desc := range descs {
		inst, err := r.Load(ctx, desc)
		if err != nil {
			rejected[desc.ID] = err
			continue
		}
		instances = append(instances, inst)
	}
	return instances, rejected
}

func (r *Runtime) load(ctx context.Context, desc entities.ModuleDescriptor) (*Instance, error) {
	fail := func(kind errors.LoadKind, name string, err error) error {
		return &errors.LoadError{ModuleID: desc.ID, Kind: kind, Name: name, Err: err}
	}

	if desc.ID == "" {
		return nil, fail(errors.InvalidBinary, "", fmt.Errorf("module id cannot be empty"))
	}

	compiled, err := r.runtime.CompileModule(ctx, desc.Binary)
	if err != nil {
		return nil, fail(errors.InvalidBinary, "", err)
	}
	defer compiled.Close(ctx)

	if !r.reserve(desc.ID) {
		return nil, fail(errors.DuplicateModule, "", fmt.Errorf("module id already loaded"))
	}
	loaded := false
	defer func() {
		if !loaded {
			r.release(desc.ID)
		}
	}()

	version, err := r.checkVersion(compiled)
	if err != nil {
		return nil, fail(errors.AbiVersionMismatch, "", err)
	}

	if len(compiled.ImportedMemories()) > 0 {
		return nil, fail(errors.MissingMemoryExport, abi.MemoryExport, fmt.Errorf("memory must be defined by the module, not imported"))
	}
	if _, ok := compiled.ExportedMemories()[abi.MemoryExport]; !ok {
		return nil, fail(errors.MissingMemoryExport, abi.MemoryExport, nil)
	}

	exports := compiled.ExportedFunctions()
	update, ok := exports[abi.UpdateExport]
	if !ok {
		return nil, fail(errors.MissingEntrypoint, abi.UpdateExport, nil)
	}
	if sig := wazeroadapter.SignatureOf(update); !sig.Equal(abi.UpdateSignature) {
		return nil, fail(errors.MissingEntrypoint, abi.UpdateExport,
			fmt.Errorf("signature %s, want %s", sig, abi.UpdateSignature))
	}

	required, err := r.resolveImports(compiled, fail)
	if err != nil {
		return nil, err
	}
	granted := entities.NewGrantSet(desc.Grants...)
	for _, name := range required {
		if !granted.Has(name) {
			return nil, fail(errors.UngrantedCapability, name, nil)
		}
	}

	if err := checkHooks(compiled, fail); err != nil {
		return nil, err
	}

	mod, err := r.runtime.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName(desc.ID).WithStartFunctions())
	if err != nil {
		return nil, fail(errors.InstantiationFailed, "", err)
	}

	inst := newInstance(desc.ID, mod, entities.NewGrantSet(required...), version, r.release)

	if err := r.runInit(ctx, inst); err != nil {
		_ = mod.Close(ctx)
		return nil, fail(errors.InitFailed, abi.BumpInitExport, err)
	}

	loaded = true
	return inst, nil
}

// checkVersion reads the gers_abi custom section. A module without one targets
// the host's current ABI.
func (r *Runtime) checkVersion(compiled wazero.CompiledModule) (*semver.Version, error) {
	for _, sec := range compiled.CustomSections() {
		if sec.Name() != abi.VersionSection {
			continue
		}
		raw := strings.TrimSpace(string(sec.Data()))
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("unparseable ABI version %q: %w", raw, err)
		}
		if !r.constraint.Check(v) {
			return nil, fmt.Errorf("ABI version %s does not satisfy %s", v, r.constraint)
		}
		return v, nil
	}
	return r.current, nil
}

// resolveImports checks every function import against the capability table and
// returns the imported capability names, sorted and deduplicated.
func (r *Runtime) resolveImports(compiled wazero.CompiledModule, fail func(errors.LoadKind, string, error) error) ([]string, error) {
	seen := make(map[string]struct{})
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if module != r.table.Namespace() {
			return nil, fail(errors.UnresolvedImport, module+"."+name,
				fmt.Errorf("unknown import module %q", module))
		}
		binding, ok := r.table.Lookup(name)
		if !ok {
			return nil, fail(errors.UnresolvedImport, name, nil)
		}
		if sig := wazeroadapter.SignatureOf(def); !sig.Equal(binding.Signature) {
			return nil, fail(errors.UnresolvedImport, name,
				fmt.Errorf("signature %s, want %s", sig, binding.Signature))
		}
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// checkHooks validates the optional lifecycle exports.
func checkHooks(compiled wazero.CompiledModule, fail func(errors.LoadKind, string, error) error) error {
	exports := compiled.ExportedFunctions()

	names := make([]string, 0, len(abi.Hooks))
	for name := range abi.Hooks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def, ok := exports[name]
		if !ok {
			continue
		}
		want := abi.Hooks[name]
		if sig := wazeroadapter.SignatureOf(def); !sig.Equal(want) {
			return fail(errors.HookSignature, name, fmt.Errorf("signature %s, want %s", sig, want))
		}
	}

	_, hasAlloc := exports[abi.EventAllocExport]
	_, hasUpdate := exports[abi.EventUpdateExport]
	switch {
	case hasAlloc && !hasUpdate:
		return fail(errors.HookSignature, abi.EventUpdateExport, fmt.Errorf("required by %s", abi.EventAllocExport))
	case hasUpdate && !hasAlloc:
		return fail(errors.HookSignature, abi.EventAllocExport, fmt.Errorf("required by %s", abi.EventUpdateExport))
	}
	return nil
}

// runInit calls the optional init hook. Log lines it writes go to the runtime's
// log sink; events it emits are dropped since the module is not yet scheduled.
func (r *Runtime) runInit(ctx context.Context, inst *Instance) error {
	if inst.bumpInit == nil {
		return nil
	}

	call := inst.NewCall(0, 0, &hostfuncs.Outbox{})
	status, err := inst.invoke(ctx, call, abi.BumpInitExport, inst.bumpInit)
	if err != nil {
		return err
	}
	if r.config.logSink != nil {
		for _, rec := range call.Outbox.Logs {
			r.config.logSink.WriteGuestLog(rec)
		}
	}
	if status != 0 {
		return fmt.Errorf("returned status %d", status)
	}
	return nil
}
