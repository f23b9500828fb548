// Package wasmtest assembles tiny toolchain modules for tests.
//
// Every export returns a constant, and the records those constants point
// at are laid down by active data segments, so a test controls exactly what
// the bridge will find in memory.
package wasmtest

import (
	"encoding/binary"

	wabin "github.com/tetratelabs/wabin/binary"
	"github.com/tetratelabs/wabin/leb128"
	"github.com/tetratelabs/wabin/wasm"
)

// Segment is bytes placed at Offset when the module is instantiated.
type Segment struct {
	Offset uint32
	Data   []byte
}

// LogCall makes execute call host.log_message(Level, Ptr, Length) first.
type LogCall struct {
	Level  uint32
	Ptr    uint32
	Length uint32
}

// Module describes a one-page module exporting memory, allocSource,
// codeGen and execute.
type Module struct {
	// AllocPtr is returned by allocSource for any length.
	AllocPtr uint32

	// CodeGenParams is the i32 parameter count of codeGen.
	CodeGenParams int

	// CodeGenResult is returned by codeGen.
	CodeGenResult uint32

	// ExecuteResult is returned by execute.
	ExecuteResult uint32

	// Segments initialise memory.
	Segments []Segment

	// Log, when set, adds a host import called from execute.
	Log *LogCall
}

// Bytes encodes the module in the Wasm binary format.
func (m Module) Bytes() []byte {
	return wabin.EncodeModule(m.build())
}

func (m Module) build() *wasm.Module {
	i32 := wasm.ValueTypeI32

	codeGenParams := make([]wasm.ValueType, m.CodeGenParams)
	for i := range codeGenParams {
		codeGenParams[i] = i32
	}

	mod := &wasm.Module{
		TypeSection: []*wasm.FunctionType{
			{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}}, // allocSource
			{Params: codeGenParams, Results: []wasm.ValueType{i32}},
			{Results: []wasm.ValueType{i32}}, // execute
		},
		FunctionSection: []wasm.Index{0, 1, 2},
		MemorySection:   &wasm.Memory{Min: 1},
	}

	// Imported functions come first in the function index space.
	var base wasm.Index
	var execBody []byte
	if m.Log != nil {
		mod.TypeSection = append(mod.TypeSection, &wasm.FunctionType{Params: []wasm.ValueType{i32, i32, i32}})
		mod.ImportSection = []*wasm.Import{{
			Type:     wasm.ExternTypeFunc,
			Module:   "host",
			Name:     "log_message",
			DescFunc: 3,
		}}
		base = 1

		execBody = append(execBody, i32Const(m.Log.Level)...)
		execBody = append(execBody, i32Const(m.Log.Ptr)...)
		execBody = append(execBody, i32Const(m.Log.Length)...)
		execBody = append(execBody, wasm.OpcodeCall, 0)
	}
	execBody = append(execBody, i32Const(m.ExecuteResult)...)

	mod.CodeSection = []*wasm.Code{
		{Body: append(i32Const(m.AllocPtr), wasm.OpcodeEnd)},
		{Body: append(i32Const(m.CodeGenResult), wasm.OpcodeEnd)},
		{Body: append(execBody, wasm.OpcodeEnd)},
	}

	mod.ExportSection = []*wasm.Export{
		{Type: wasm.ExternTypeMemory, Name: "memory", Index: 0},
		{Type: wasm.ExternTypeFunc, Name: "allocSource", Index: base},
		{Type: wasm.ExternTypeFunc, Name: "codeGen", Index: base + 1},
		{Type: wasm.ExternTypeFunc, Name: "execute", Index: base + 2},
	}

	for _, s := range m.Segments {
		mod.DataSection = append(mod.DataSection, &wasm.DataSegment{
			OffsetExpression: &wasm.ConstantExpression{
				Opcode: wasm.OpcodeI32Const,
				Data:   leb128.EncodeInt32(int32(s.Offset)),
			},
			Init: s.Data,
		})
	}

	return mod
}

// Words encodes little-endian uint32 words.
func Words(vals ...uint32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[4*i:], v)
	}
	return out
}

func i32Const(v uint32) []byte {
	return append([]byte{wasm.OpcodeI32Const}, leb128.EncodeInt32(int32(v))...)
}
