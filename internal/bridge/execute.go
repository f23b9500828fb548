package bridge

import (
	"context"
	"fmt"

	abi "github.com/woxQAQ/xlang-bridge/api/wasm"
)

// Execute runs the last compiled program and decodes its record using the
// given layout.
func Execute(ctx context.Context, m Module, layout abi.Layout) (*ExecutionResult, error) {
	if layout != abi.LayoutLegacy && layout != abi.LayoutExtended {
		return nil, fmt.Errorf("unsupported protocol layout %q", layout)
	}

	ptr, err := m.Execute(ctx)
	if err != nil {
		return nil, err
	}

	mem := m.Memory()
	w, err := readWords(mem, ptr, layout.RecordWords(), "execute record")
	if err != nil {
		return nil, err
	}

	if layout == abi.LayoutLegacy {
		return decodeLegacy(mem, w)
	}
	return decodeExtended(mem, w)
}

// decodeLegacy: [status, msgOffset, msgLength, rangeStart, rangeEnd]
func decodeLegacy(mem Memory, w []uint32) (*ExecutionResult, error) {
	text, err := Region{Offset: w[1], Length: w[2]}.ReadString(mem, "execute message")
	if err != nil {
		return nil, err
	}

	res := &ExecutionResult{Layout: abi.LayoutLegacy}
	if w[0] == 0 {
		res.Output = text
		return res, nil
	}
	res.Exception = &Exception{
		Message: text,
		Range:   SourceRange{Start: w[3], End: w[4]},
	}
	return res, nil
}

// decodeExtended: [outOffset, outLength, tableOffset, tableCount,
// excStart, excEnd, rangeStart, rangeEnd]
func decodeExtended(mem Memory, w []uint32) (*ExecutionResult, error) {
	output, err := Region{Offset: w[0], Length: w[1]}.ReadString(mem, "execute output")
	if err != nil {
		return nil, err
	}

	results, err := decodeResultTable(mem, output, w[2], w[3])
	if err != nil {
		return nil, err
	}

	res := &ExecutionResult{
		Layout:  abi.LayoutExtended,
		Output:  output,
		Results: results,
	}

	if w[4] != abi.NoException {
		msg, err := substring(output, w[4], w[5], "exception message")
		if err != nil {
			return nil, err
		}
		res.Exception = &Exception{
			Message: msg,
			Range:   SourceRange{Start: w[6], End: w[7]},
		}
	}
	return res, nil
}

// decodeResultTable reads count rows of [labelStart, labelEnd, index].
// Labels index into output rather than memory.
func decodeResultTable(mem Memory, output string, ptr, count uint32) ([]ResultEntry, error) {
	if count == 0 {
		return []ResultEntry{}, nil
	}

	rowWords := uint64(abi.ResultRowWords)
	total := uint64(count) * rowWords
	if uint64(ptr)+total*abi.WordSize > uint64(mem.Size()) {
		return nil, &ProtocolViolationError{
			What:   "result table",
			Offset: uint64(ptr),
			Length: total * abi.WordSize,
			Limit:  uint64(mem.Size()),
		}
	}

	w, err := readWords(mem, ptr, uint32(total), "result table")
	if err != nil {
		return nil, err
	}

	results := make([]ResultEntry, 0, count)
	for i := uint64(0); i < total; i += rowWords {
		label, err := substring(output, w[i], w[i+1], "result label")
		if err != nil {
			return nil, err
		}
		results = append(results, ResultEntry{Label: label, Index: w[i+2]})
	}
	return results, nil
}
