package toolchain

import (
	"context"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero/api"
	abi "github.com/woxQAQ/xlang-bridge/api/wasm"
	"github.com/woxQAQ/xlang-bridge/internal/bridge"
	"github.com/woxQAQ/xlang-bridge/internal/wasm"
)

// Module is a loaded toolchain: the export surface plus the record layout
// it speaks.
type Module interface {
	bridge.Module
	Layout() abi.Layout
}

// Handle is the instantiated toolchain module. It lives for the whole
// worker process.
type Handle struct {
	// Manifest is the parsed module metadata
	Manifest *Manifest

	// LoadedAt is the timestamp when the module was instantiated
	LoadedAt time.Time

	layout   abi.Layout
	instance *wasm.Instance
	memory   *wasm.Memory

	allocSource api.Function
	codeGen     api.Function
	execute     api.Function
}

var _ Module = (*Handle)(nil)

func bind(instance *wasm.Instance, manifest *Manifest, layout abi.Layout) (*Handle, error) {
	names := manifest.Exports

	h := &Handle{
		Manifest: manifest,
		LoadedAt: time.Now(),
		layout:   layout,
		instance: instance,
	}

	var err error
	if h.allocSource, err = lookup(instance, names.AllocSource, 1, 1, "(i32) -> i32"); err != nil {
		return nil, err
	}
	if h.codeGen, err = lookup(instance, names.CodeGen, -1, 1, "(i32{0,2}) -> i32"); err != nil {
		return nil, err
	}
	if h.execute, err = lookup(instance, names.Execute, 0, 1, "() -> i32"); err != nil {
		return nil, err
	}
	if n := len(h.codeGen.Definition().ParamTypes()); n > 2 {
		return nil, &SignatureError{Export: names.CodeGen, Params: n, Results: 1, Want: "(i32{0,2}) -> i32"}
	}

	if h.memory, err = instance.Memory(names.Memory); err != nil {
		return nil, err
	}
	return h, nil
}

// lookup resolves an export and checks its arity; params < 0 skips the
// parameter check.
func lookup(instance *wasm.Instance, name string, params, results int, want string) (api.Function, error) {
	fn, err := instance.Function(name)
	if err != nil {
		return nil, err
	}
	def := fn.Definition()
	p, r := len(def.ParamTypes()), len(def.ResultTypes())
	if (params >= 0 && p != params) || r != results {
		return nil, &SignatureError{Export: name, Params: p, Results: r, Want: want}
	}
	return fn, nil
}

// Layout returns the execute record layout.
func (h *Handle) Layout() abi.Layout {
	return h.layout
}

// Memory returns the module's linear memory view.
func (h *Handle) Memory() bridge.Memory {
	return h.memory
}

// AllocSource asks the module for a source buffer of length bytes.
func (h *Handle) AllocSource(ctx context.Context, length uint32) (uint32, error) {
	return call(ctx, h.Manifest.Exports.AllocSource, h.allocSource, uint64(length))
}

// CodeGen passes as many selectors as the export declares: older modules
// take only the mode.
func (h *Handle) CodeGen(ctx context.Context, sel bridge.Selectors) (uint32, error) {
	params := []uint64{uint64(sel.Mode), uint64(sel.Flavor)}
	n := len(h.codeGen.Definition().ParamTypes())
	return call(ctx, h.Manifest.Exports.CodeGen, h.codeGen, params[:n]...)
}

// Execute runs the last compiled program.
func (h *Handle) Execute(ctx context.Context) (uint32, error) {
	return call(ctx, h.Manifest.Exports.Execute, h.execute)
}

func call(ctx context.Context, name string, fn api.Function, params ...uint64) (uint32, error) {
	res, err := fn.Call(ctx, params...)
	if err != nil {
		return 0, &bridge.CallError{Export: name, Err: err}
	}
	if len(res) != 1 {
		return 0, &bridge.CallError{Export: name, Err: fmt.Errorf("expected 1 result, got %d", len(res))}
	}
	return api.DecodeU32(res[0]), nil
}
