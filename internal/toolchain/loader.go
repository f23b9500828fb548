package toolchain

import (
	"context"
	"sync"
	"time"

	abi "github.com/woxQAQ/xlang-bridge/api/wasm"
	"github.com/woxQAQ/xlang-bridge/internal/config"
	"github.com/woxQAQ/xlang-bridge/internal/wasm"
	"go.uber.org/zap"
)

// Loader obtains the toolchain module exactly once per process.
//
// The first Start or Load begins fetching, compiling and instantiating in
// the background. Every caller, concurrent or later, waits for that single
// attempt and gets the same Handle or the same *ModuleLoadError. There is
// no retry.
type Loader struct {
	cfg         *config.Config
	runtime     *wasm.Runtime
	modules     *wasm.ModuleLoader
	instanceMgr *wasm.InstanceManager
	logger      *zap.Logger

	once   sync.Once
	done   chan struct{}
	handle *Handle
	err    error
}

// NewLoader creates a loader for the module described in cfg.ModuleDir.
func NewLoader(
	cfg *config.Config,
	runtime *wasm.Runtime,
	hostFuncs *wasm.HostFunctionsImpl,
	logger *zap.Logger,
) *Loader {
	return &Loader{
		cfg:         cfg,
		runtime:     runtime,
		modules:     wasm.NewModuleLoader(runtime, logger),
		instanceMgr: wasm.NewInstanceManager(runtime, hostFuncs, logger),
		logger:      logger.With(zap.String("component", "toolchain-loader")),
		done:        make(chan struct{}),
	}
}

// Start begins loading if it has not started yet. The load outlives ctx's
// cancellation but keeps its values.
func (l *Loader) Start(ctx context.Context) {
	l.once.Do(func() {
		ctx := context.WithoutCancel(ctx)
		go func() {
			defer close(l.done)
			l.handle, l.err = l.load(ctx)
		}()
	})
}

// Load waits for the module. ctx bounds only this caller's wait.
func (l *Loader) Load(ctx context.Context) (Module, error) {
	l.Start(ctx)

	select {
	case <-l.done:
		if l.err != nil {
			return nil, l.err
		}
		return l.handle, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once loading has finished, successfully or not.
func (l *Loader) Done() <-chan struct{} {
	return l.done
}

func (l *Loader) load(ctx context.Context) (*Handle, error) {
	dir := l.cfg.ModuleDir

	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, l.fail(dir, err)
	}

	layout := manifest.Layout()
	if l.cfg.Protocol != "" {
		if layout, err = abi.ParseLayout(l.cfg.Protocol); err != nil {
			return nil, l.fail(manifest.Name, err)
		}
	}
	if layout == "" {
		return nil, l.fail(manifest.Name, &ManifestValidationError{
			Path:    manifest.Path(),
			Field:   "protocol",
			Message: "protocol is required unless the service config sets one",
		})
	}

	l.logger.Info("Loading toolchain module",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.String("protocol", string(layout)),
		zap.String("wasm", manifest.WasmPath()),
	)

	var compiled *wasm.CompiledModule
	if manifest.IsRemote() {
		compiled, err = l.modules.LoadModuleFromURL(ctx, manifest.WasmPath())
	} else {
		compiled, err = l.modules.LoadModuleFromFile(ctx, manifest.WasmPath())
	}
	if err != nil {
		return nil, l.fail(manifest.Name, err)
	}

	exports := manifest.Exports
	instance, err := l.instanceMgr.Instantiate(ctx, &wasm.InstanceConfig{
		ModuleName: compiled.Name,
		Exports:    []string{exports.AllocSource, exports.CodeGen, exports.Execute},
		WASI:       manifest.WASI,
	})
	if err != nil {
		return nil, l.fail(manifest.Name, err)
	}

	handle, err := bind(instance, manifest, layout)
	if err != nil {
		_ = instance.Close(ctx)
		return nil, l.fail(manifest.Name, err)
	}

	l.logger.Info("Toolchain module loaded",
		zap.Stringer("module", manifest),
		zap.String("instance_id", instance.ID),
		zap.Int64("size_bytes", compiled.SizeBytes),
	)

	return handle, nil
}

func (l *Loader) fail(module string, err error) error {
	l.logger.Error("Failed to load toolchain module",
		zap.String("module", module),
		zap.Error(err),
	)
	return &ModuleLoadError{Module: module, Err: err}
}

// Shutdown closes the runtime and every instance in it. Calling it again
// is a no-op.
func (l *Loader) Shutdown(ctx context.Context) error {
	if l.runtime.IsClosed() {
		return nil
	}

	fields := []zap.Field{zap.Int("instances", l.runtime.InstanceCount())}
	select {
	case <-l.done:
		if l.handle != nil {
			fields = append(fields,
				zap.Stringer("module", l.handle.Manifest),
				zap.Time("loaded_at", l.handle.LoadedAt),
				zap.Duration("uptime", time.Since(l.handle.LoadedAt)),
			)
		}
	default:
	}
	l.logger.Info("Shutting down toolchain loader", fields...)

	if err := l.runtime.Close(ctx); err != nil {
		l.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	l.logger.Info("Toolchain loader shutdown complete")
	return nil
}
