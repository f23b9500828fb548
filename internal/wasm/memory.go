package wasm

import (
	"errors"

	"github.com/tetratelabs/wazero/api"
)

var errOutOfRange = errors.New("out of range of memory size")

// Memory is a view over an exported linear memory.
//
// The memory is resolved from the module on every access, so growth caused
// by a guest call (an allocator asking for more pages, say) is always
// visible. Reads return copies: wazero hands out slices aliasing the guest
// buffer, which the next guest call may overwrite.
type Memory struct {
	module api.Module
	name   string
}

// NewMemory creates a memory helper for the module's default memory.
func NewMemory(module api.Module) *Memory {
	return &Memory{module: module}
}

// NewExportedMemory creates a memory helper for a named memory export.
func NewExportedMemory(module api.Module, name string) (*Memory, error) {
	if module.ExportedMemory(name) == nil {
		return nil, &MemoryNotFoundError{ModuleName: module.Name(), MemoryName: name}
	}
	return &Memory{module: module, name: name}, nil
}

func (m *Memory) mem() api.Memory {
	if m.name == "" {
		return m.module.Memory()
	}
	return m.module.ExportedMemory(m.name)
}

// Size returns the current size in bytes.
func (m *Memory) Size() uint32 {
	mem := m.mem()
	if mem == nil {
		return 0
	}
	return mem.Size()
}

// Read copies length bytes starting at offset.
func (m *Memory) Read(offset, length uint32) ([]byte, bool) {
	mem := m.mem()
	if mem == nil {
		return nil, false
	}
	buf, ok := mem.Read(offset, length)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, true
}

// Write copies data into memory at offset.
func (m *Memory) Write(offset uint32, data []byte) bool {
	mem := m.mem()
	if mem == nil {
		return false
	}
	return mem.Write(offset, data)
}
