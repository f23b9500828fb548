package wasm

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"
)

// InstanceManager creates and manages module instances.
type InstanceManager struct {
	runtime   *Runtime
	logger    *zap.Logger
	hostFuncs *HostFunctionsImpl

	// Host and WASI modules are instantiated into the runtime at most once.
	hostOnce sync.Once
	hostErr  error
	wasiOnce sync.Once
	wasiErr  error
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, hostFuncs *HostFunctionsImpl, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime:   runtime,
		hostFuncs: hostFuncs,
		logger:    logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, generates UUID).
	InstanceID string

	// Exports that must be present; resolved eagerly.
	Exports []string

	// WASI instantiates wasi_snapshot_preview1 and runs _initialize.
	WASI bool
}

// Instance represents an instantiated Wasm module.
type Instance struct {
	// wazero module instance.
	module  api.Module
	runtime *Runtime

	// Instance metadata.
	ID   string
	Name string

	mu      sync.Mutex
	exports map[string]api.Function
}

// Instantiate creates a new instance from a compiled module.
// Host functions are exported to the Wasm module.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}

	if limit := m.runtime.config.MaxInstances; limit > 0 && m.runtime.InstanceCount() >= limit {
		return nil, &InstanceLimitError{Limit: limit}
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = generateUUID()
	}

	m.logger.Info("Instantiating Wasm module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
	)

	if err := m.ensureHostModule(ctx); err != nil {
		return nil, fmt.Errorf("failed to instantiate host module: %w", err)
	}

	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions() // reactor modules: no _start

	if config.WASI {
		if err := m.ensureWASI(ctx); err != nil {
			return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
		}
		guest := m.logger.With(zap.String("instance_id", instanceID))
		moduleConfig = moduleConfig.
			WithStartFunctions("_initialize").
			WithStdout(&zapio.Writer{Log: guest, Level: zapcore.InfoLevel}).
			WithStderr(&zapio.Writer{Log: guest, Level: zapcore.WarnLevel})
	}

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	exports, err := m.cacheExportedFunctions(module, config.ModuleName, config.Exports)
	if err != nil {
		_ = module.Close(ctx)
		return nil, err
	}

	instance := &Instance{
		module:  module,
		runtime: m.runtime,
		ID:      instanceID,
		Name:    config.ModuleName,
		exports: exports,
	}

	// Track active instance.
	m.runtime.StoreInstance(instanceID, module)

	m.logger.Info("Module instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(exports)),
	)

	return instance, nil
}

// Function returns an exported function by name.
func (i *Instance) Function(name string) (api.Function, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if fn, ok := i.exports[name]; ok {
		return fn, nil
	}
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: name}
	}
	i.exports[name] = fn
	return fn, nil
}

// Memory returns a view over the named memory export.
func (i *Instance) Memory(name string) (*Memory, error) {
	mem, err := NewExportedMemory(i.module, name)
	if err != nil {
		return nil, &MemoryNotFoundError{ModuleName: i.Name, MemoryName: name}
	}
	return mem, nil
}

// Close closes the instance and releases resources.
func (i *Instance) Close(ctx context.Context) error {
	i.runtime.DeleteInstance(i.ID)
	return i.module.Close(ctx)
}

// cacheExportedFunctions resolves the required exports up front so a module
// missing part of its contract fails at instantiation, not on first call.
func (m *InstanceManager) cacheExportedFunctions(module api.Module, moduleName string, names []string) (map[string]api.Function, error) {
	exports := make(map[string]api.Function, len(names))

	for _, name := range names {
		fn := module.ExportedFunction(name)
		if fn == nil {
			return nil, &FunctionNotFoundError{ModuleName: moduleName, FunctionName: name}
		}
		exports[name] = fn
	}

	return exports, nil
}

func (m *InstanceManager) ensureHostModule(ctx context.Context) error {
	m.hostOnce.Do(func() {
		if m.runtime.runtime.Module(HostModuleName) != nil {
			return
		}
		builder := m.runtime.runtime.NewHostModuleBuilder(HostModuleName)
		m.exportHostFunctions(builder)
		_, m.hostErr = builder.Instantiate(ctx)
	})
	return m.hostErr
}

func (m *InstanceManager) ensureWASI(ctx context.Context) error {
	m.wasiOnce.Do(func() {
		if m.runtime.runtime.Module(wasi_snapshot_preview1.ModuleName) != nil {
			return
		}
		_, m.wasiErr = wasi_snapshot_preview1.Instantiate(ctx, m.runtime.runtime)
	})
	return m.wasiErr
}

// exportHostFunctions registers Go functions for import by Wasm modules.
func (m *InstanceManager) exportHostFunctions(builder wazero.HostModuleBuilder) {
	impl := m.hostFuncs

	// Wasm modules can call this to log messages.
	builder.NewFunctionBuilder().
		WithFunc(impl.logMessage).
		WithParameterNames("level", "ptr", "length").
		Export("log_message")
}

func generateUUID() string {
	return "inst-" + uuid.NewString()
}
