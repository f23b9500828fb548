// Package protocol defines the JSON messages exchanged between a host and
// the bridge worker.
package protocol

import (
	"encoding/json"
	"strconv"
	"strings"

	abi "github.com/woxQAQ/xlang-bridge/api/wasm"
)

// Kind tags requests and responses.
type Kind string

const (
	KindCodeGen Kind = "codegen"
	KindExecute Kind = "execute"
)

// Request is one inbound message. Source, Mode and Flavor are used only by
// codegen.
type Request struct {
	Kind   Kind     `json:"kind"`
	Source string   `json:"source,omitempty"`
	Mode   Selector `json:"mode,omitempty"`
	Flavor Selector `json:"flavor,omitempty"`
}

// Selector is a numeric codegen option. Hosts send it as a decimal string
// or a JSON number; anything else reads as 0.
type Selector uint32

// ParseSelector converts a decimal selector, mapping empty or non-numeric
// input to 0.
func ParseSelector(s string) Selector {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0
	}
	return Selector(v)
}

func (s *Selector) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = ParseSelector(str)
		return nil
	}
	*s = ParseSelector(string(data))
	return nil
}

func (s Selector) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(s), 10))
}

// Diagnostic is a compiler-reported codegen failure.
type Diagnostic struct {
	Message    string `json:"message"`
	RangeStart uint32 `json:"rangeStart"`
	RangeEnd   uint32 `json:"rangeEnd"`
	Source     string `json:"source"`
}

// Exception is an interpreter-reported runtime fault.
type Exception struct {
	Message    string `json:"message"`
	RangeStart uint32 `json:"rangeStart"`
	RangeEnd   uint32 `json:"rangeEnd"`
}

// Result is one labelled entry of the extended result table.
type Result struct {
	Label string `json:"label"`
	Index uint32 `json:"index"`
}

// Execution is the decoded outcome of an execute call. Layout picks the
// wire shape.
type Execution struct {
	Layout    abi.Layout
	Output    string
	Results   []Result
	Exception *Exception
}

// Response is one outbound message. Exactly one of Error, Diagnostic or
// Execution is meaningful, depending on Kind.
type Response struct {
	Kind Kind

	// Error reports a failure outside the module's own diagnostics: a load
	// failure or a protocol violation.
	Error string

	// Diagnostic is nil for a successful codegen.
	Diagnostic *Diagnostic

	Execution  *Execution
	DurationMs float64
}

type errorResponse struct {
	Kind  Kind   `json:"kind"`
	Error string `json:"error"`
}

type kindOnly struct {
	Kind Kind `json:"kind"`
}

type codeGenFailure struct {
	Kind Kind `json:"kind"`
	Diagnostic
}

type legacySuccess struct {
	Kind       Kind    `json:"kind"`
	Stdout     string  `json:"stdout"`
	DurationMs float64 `json:"durationMs"`
}

type legacyException struct {
	Kind       Kind    `json:"kind"`
	Exception  string  `json:"exception"`
	DurationMs float64 `json:"durationMs"`
	RangeStart uint32  `json:"rangeStart"`
	RangeEnd   uint32  `json:"rangeEnd"`
}

type extendedResult struct {
	Kind       Kind       `json:"kind"`
	Output     string     `json:"output"`
	Results    []Result   `json:"results"`
	Exception  *Exception `json:"exception,omitempty"`
	DurationMs float64    `json:"durationMs"`
}

// MarshalJSON emits the shape matching the response kind and layout.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(errorResponse{Kind: r.Kind, Error: r.Error})
	}

	switch {
	case r.Kind == KindCodeGen && r.Diagnostic != nil:
		return json.Marshal(codeGenFailure{Kind: r.Kind, Diagnostic: *r.Diagnostic})

	case r.Kind == KindExecute && r.Execution != nil:
		return r.marshalExecution()
	}

	return json.Marshal(kindOnly{Kind: r.Kind})
}

func (r Response) marshalExecution() ([]byte, error) {
	e := r.Execution

	if e.Layout == abi.LayoutExtended {
		results := e.Results
		if results == nil {
			results = []Result{}
		}
		return json.Marshal(extendedResult{
			Kind:       r.Kind,
			Output:     e.Output,
			Results:    results,
			Exception:  e.Exception,
			DurationMs: r.DurationMs,
		})
	}

	if e.Exception == nil {
		return json.Marshal(legacySuccess{
			Kind:       r.Kind,
			Stdout:     e.Output,
			DurationMs: r.DurationMs,
		})
	}
	return json.Marshal(legacyException{
		Kind:       r.Kind,
		Exception:  e.Exception.Message,
		DurationMs: r.DurationMs,
		RangeStart: e.Exception.RangeStart,
		RangeEnd:   e.Exception.RangeEnd,
	})
}
