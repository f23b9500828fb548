package bridge

import (
	"context"

	abi "github.com/woxQAQ/xlang-bridge/api/wasm"
)

// CodeGen compiles the source last written by EncodeSource.
// A nil ErrorInfo means the module reported success.
func CodeGen(ctx context.Context, m Module, sel Selectors) (*ErrorInfo, error) {
	ptr, err := m.CodeGen(ctx, sel)
	if err != nil {
		return nil, err
	}
	if ptr == 0 {
		return nil, nil
	}

	mem := m.Memory()
	w, err := readWords(mem, ptr, abi.ErrorRecordWords, "codegen error record")
	if err != nil {
		return nil, err
	}

	msg, err := Region{Offset: w[0], Length: w[1]}.ReadString(mem, "codegen message")
	if err != nil {
		return nil, err
	}

	return &ErrorInfo{
		Message: msg,
		Range:   SourceRange{Start: w[2], End: w[3]},
	}, nil
}
