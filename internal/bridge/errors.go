package bridge

import (
	"fmt"
)

// ProtocolViolationError occurs when a record points outside of the memory
// or text it is supposed to index.
type ProtocolViolationError struct {
	// What was being decoded, e.g. "codegen message".
	What   string
	Offset uint64
	Length uint64
	// Limit is the size of the memory or text indexed.
	Limit uint64
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("protocol violation: %s [%d, %d) exceeds bound %d",
		e.What, e.Offset, e.Offset+e.Length, e.Limit)
}

// CallError occurs when an export traps or returns an unexpected result.
type CallError struct {
	Export string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call to export '%s' failed: %v", e.Export, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}
