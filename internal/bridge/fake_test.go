package bridge

import (
	"context"
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

// fakeModule mimics a toolchain module over a plain byte slice. Memory
// returns a snapshot of the current buffer, so a view taken before a
// growing allocation goes stale just like a detached ArrayBuffer would.
type fakeModule struct {
	buf []byte

	allocPtr      uint32
	growOnAlloc   int
	codeGenResult uint32
	executeResult uint32
	err           error

	allocLen uint32
	sel      Selectors
	calls    []string
}

func newFake(size int) *fakeModule {
	return &fakeModule{buf: make([]byte, size)}
}

func (f *fakeModule) put(offset uint32, data []byte) {
	copy(f.buf[offset:], data)
}

func (f *fakeModule) AllocSource(ctx context.Context, length uint32) (uint32, error) {
	f.calls = append(f.calls, "allocSource")
	f.allocLen = length
	if f.growOnAlloc > 0 {
		grown := make([]byte, len(f.buf)+f.growOnAlloc)
		copy(grown, f.buf)
		f.buf = grown
	}
	return f.allocPtr, f.err
}

func (f *fakeModule) CodeGen(ctx context.Context, sel Selectors) (uint32, error) {
	f.calls = append(f.calls, "codeGen")
	f.sel = sel
	return f.codeGenResult, f.err
}

func (f *fakeModule) Execute(ctx context.Context) (uint32, error) {
	f.calls = append(f.calls, "execute")
	return f.executeResult, f.err
}

func (f *fakeModule) Memory() Memory {
	return &fakeMemory{buf: f.buf}
}
