package bridge

import (
	"context"

	abi "github.com/woxQAQ/xlang-bridge/api/wasm"
)

// Memory is the part of a linear memory view the marshaler needs.
// Read must return a copy that stays valid after later module calls.
type Memory interface {
	Size() uint32
	Read(offset, length uint32) ([]byte, bool)
	Write(offset uint32, data []byte) bool
}

// Module is the export surface of a toolchain module.
type Module interface {
	AllocSource(ctx context.Context, length uint32) (uint32, error)
	CodeGen(ctx context.Context, sel Selectors) (uint32, error)
	Execute(ctx context.Context) (uint32, error)

	// Memory returns the current view; callers fetch it again after any
	// export call instead of holding on to it.
	Memory() Memory
}

// Selectors pick the code generation mode and flavor.
type Selectors struct {
	Mode   uint32
	Flavor uint32
}

// SourceRange is a span of the original source text.
type SourceRange struct {
	Start uint32
	End   uint32
}

// ErrorInfo is a compiler diagnostic returned by a failed codegen call.
type ErrorInfo struct {
	Message string
	Range   SourceRange
}

// Exception is a runtime fault reported by execute.
type Exception struct {
	Message string
	Range   SourceRange
}

// ResultEntry is one labelled row of the results table.
type ResultEntry struct {
	Label string
	Index uint32
}

// ExecutionResult is a decoded execute record.
//
// For the legacy layout Output holds stdout on success and is empty when an
// exception was raised; Results is always nil. For the extended layout
// Output is the full output text and Results is never nil.
type ExecutionResult struct {
	Layout    abi.Layout
	Output    string
	Results   []ResultEntry
	Exception *Exception
}
