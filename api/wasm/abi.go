package wasm

import "fmt"

// Default export names of a toolchain module.
const (
	ExportAllocSource = "allocSource"
	ExportCodeGen     = "codeGen"
	ExportExecute     = "execute"
	ExportMemory      = "memory"
)

// WordSize is the size in bytes of every record field.
const WordSize = 4

// Record sizes, in words.
const (
	// ErrorRecordWords: [msgOffset, msgLength, rangeStart, rangeEnd]
	ErrorRecordWords = 4
	// LegacyRecordWords: [status, msgOffset, msgLength, rangeStart, rangeEnd]
	LegacyRecordWords = 5
	// ExtendedRecordWords: [outOffset, outLength, tableOffset, tableCount,
	// excStart, excEnd, rangeStart, rangeEnd]
	ExtendedRecordWords = 8
	// ResultRowWords: [labelStart, labelEnd, index]
	ResultRowWords = 3
)

// NoException marks an absent exception in the excStart field of an
// extended record.
const NoException uint32 = 0xFFFFFFFF

// Layout selects which execute record a module returns.
type Layout string

const (
	LayoutLegacy   Layout = "legacy"
	LayoutExtended Layout = "extended"
)

// ParseLayout validates a layout name.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(s); l {
	case LayoutLegacy, LayoutExtended:
		return l, nil
	default:
		return "", fmt.Errorf("unknown protocol layout %q (must be one of: legacy, extended)", s)
	}
}

// RecordWords returns the execute record size for the layout.
func (l Layout) RecordWords() uint32 {
	if l == LayoutLegacy {
		return LegacyRecordWords
	}
	return ExtendedRecordWords
}
