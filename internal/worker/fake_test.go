package worker

import (
	"context"

	abi "github.com/woxQAQ/xlang-bridge/api/wasm"
	"github.com/woxQAQ/xlang-bridge/internal/bridge"
	"github.com/woxQAQ/xlang-bridge/internal/toolchain"
	"github.com/woxQAQ/xlang-bridge/internal/wasm/wasmtest"
)

type fakeMemory struct {
	buf []byte
}

func (m *fakeMemory) Size() uint32 { return uint32(len(m.buf)) }

func (m *fakeMemory) Read(offset, length uint32) ([]byte, bool) {
	if uint64(offset)+uint64(length) > uint64(len(m.buf)) {
		return nil, false
	}
	return append([]byte(nil), m.buf[offset:offset+length]...), true
}

func (m *fakeMemory) Write(offset uint32, data []byte) bool {
	if uint64(offset)+uint64(len(data)) > uint64(len(m.buf)) {
		return false
	}
	copy(m.buf[offset:], data)
	return true
}

// fakeModule is a toolchain module over one page of plain memory.
type fakeModule struct {
	layout abi.Layout
	mem    *fakeMemory

	allocPtr      uint32
	codeGenResult uint32
	executeResult uint32

	sel       bridge.Selectors
	calls     []string
	cancelled bool
}

var _ toolchain.Module = (*fakeModule)(nil)

func newFake(layout abi.Layout) *fakeModule {
	return &fakeModule{
		layout:   layout,
		mem:      &fakeMemory{buf: make([]byte, 65536)},
		allocPtr: 4096,
	}
}

func (f *fakeModule) put(offset uint32, data []byte) {
	copy(f.mem.buf[offset:], data)
}

func (f *fakeModule) putWords(offset uint32, words ...uint32) {
	f.put(offset, wasmtest.Words(words...))
}

func (f *fakeModule) Layout() abi.Layout { return f.layout }

func (f *fakeModule) Memory() bridge.Memory { return f.mem }

func (f *fakeModule) AllocSource(ctx context.Context, length uint32) (uint32, error) {
	f.calls = append(f.calls, "allocSource")
	return f.allocPtr, nil
}

func (f *fakeModule) CodeGen(ctx context.Context, sel bridge.Selectors) (uint32, error) {
	f.calls = append(f.calls, "codeGen")
	f.sel = sel
	return f.codeGenResult, nil
}

func (f *fakeModule) Execute(ctx context.Context) (uint32, error) {
	f.calls = append(f.calls, "execute")
	f.cancelled = ctx.Err() != nil
	return f.executeResult, nil
}

type fakeLoader struct {
	module toolchain.Module
	err    error
	loads  int
}

func (l *fakeLoader) Load(ctx context.Context) (toolchain.Module, error) {
	l.loads++
	if l.err != nil {
		return nil, l.err
	}
	return l.module, nil
}
