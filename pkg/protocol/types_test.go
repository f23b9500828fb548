package protocol

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	abi "github.com/woxQAQ/xlang-bridge/api/wasm"
)

// decode round-trips a response through JSON into a generic map so tests
// compare the exact wire shape.
func decode(t *testing.T, r Response) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return out
}

func TestRequestSelectors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantMode   Selector
		wantFlavor Selector
	}{
		{"strings", `{"kind":"codegen","source":"x","mode":"1","flavor":"2"}`, 1, 2},
		{"numbers", `{"kind":"codegen","mode":3,"flavor":0}`, 3, 0},
		{"missing", `{"kind":"codegen"}`, 0, 0},
		{"empty", `{"kind":"codegen","mode":"","flavor":" "}`, 0, 0},
		{"non-numeric", `{"kind":"codegen","mode":"fast","flavor":"-1"}`, 0, 0},
		{"null", `{"kind":"codegen","mode":null}`, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			if err := json.Unmarshal([]byte(tt.input), &req); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if req.Kind != KindCodeGen {
				t.Errorf("Kind = %s", req.Kind)
			}
			if req.Mode != tt.wantMode || req.Flavor != tt.wantFlavor {
				t.Errorf("selectors = (%d, %d), want (%d, %d)",
					req.Mode, req.Flavor, tt.wantMode, tt.wantFlavor)
			}
		})
	}
}

func TestRequestMarshal(t *testing.T) {
	data, err := json.Marshal(Request{Kind: KindCodeGen, Source: "1+1", Mode: 1, Flavor: 2})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"kind":"codegen","source":"1+1","mode":"1","flavor":"2"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	data, _ = json.Marshal(Request{Kind: KindExecute})
	if string(data) != `{"kind":"execute"}` {
		t.Errorf("execute request = %s", data)
	}
}

func TestCodeGenResponse(t *testing.T) {
	got := decode(t, Response{Kind: KindCodeGen})
	if diff := cmp.Diff(map[string]interface{}{"kind": "codegen"}, got); diff != "" {
		t.Errorf("success shape mismatch (-want +got):\n%s", diff)
	}

	got = decode(t, Response{
		Kind: KindCodeGen,
		Diagnostic: &Diagnostic{
			Message:    "error",
			RangeStart: 2,
			RangeEnd:   7,
			Source:     "let x =",
		},
	})
	want := map[string]interface{}{
		"kind":       "codegen",
		"message":    "error",
		"rangeStart": float64(2),
		"rangeEnd":   float64(7),
		"source":     "let x =",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("failure shape mismatch (-want +got):\n%s", diff)
	}
}

func TestLegacyExecuteResponse(t *testing.T) {
	got := decode(t, Response{
		Kind:       KindExecute,
		Execution:  &Execution{Layout: abi.LayoutLegacy, Output: "hi\n"},
		DurationMs: 1.5,
	})
	want := map[string]interface{}{
		"kind":       "execute",
		"stdout":     "hi\n",
		"durationMs": 1.5,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stdout shape mismatch (-want +got):\n%s", diff)
	}

	got = decode(t, Response{
		Kind: KindExecute,
		Execution: &Execution{
			Layout:    abi.LayoutLegacy,
			Exception: &Exception{Message: "boom", RangeStart: 4, RangeEnd: 9},
		},
		DurationMs: 0.25,
	})
	want = map[string]interface{}{
		"kind":       "execute",
		"exception":  "boom",
		"durationMs": 0.25,
		"rangeStart": float64(4),
		"rangeEnd":   float64(9),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("exception shape mismatch (-want +got):\n%s", diff)
	}
}

func TestExtendedExecuteResponse(t *testing.T) {
	got := decode(t, Response{
		Kind: KindExecute,
		Execution: &Execution{
			Layout:  abi.LayoutExtended,
			Output:  "ab\ncd",
			Results: []Result{{Label: "ab", Index: 0}},
		},
		DurationMs: 3,
	})
	want := map[string]interface{}{
		"kind":   "execute",
		"output": "ab\ncd",
		"results": []interface{}{
			map[string]interface{}{"label": "ab", "index": float64(0)},
		},
		"durationMs": float64(3),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("extended shape mismatch (-want +got):\n%s", diff)
	}
	if _, ok := got["exception"]; ok {
		t.Error("exception must be absent when none was raised")
	}
}

func TestExtendedExecuteResponse_EmptyTable(t *testing.T) {
	got := decode(t, Response{
		Kind: KindExecute,
		Execution: &Execution{
			Layout:    abi.LayoutExtended,
			Exception: &Exception{Message: "bad", RangeStart: 1, RangeEnd: 2},
		},
	})

	results, ok := got["results"].([]interface{})
	if !ok || len(results) != 0 {
		t.Errorf("results = %#v, want empty array", got["results"])
	}

	want := map[string]interface{}{
		"message":    "bad",
		"rangeStart": float64(1),
		"rangeEnd":   float64(2),
	}
	if diff := cmp.Diff(want, got["exception"]); diff != "" {
		t.Errorf("exception mismatch (-want +got):\n%s", diff)
	}
}

func TestErrorResponse(t *testing.T) {
	got := decode(t, Response{
		Kind:      KindExecute,
		Error:     "failed to load toolchain module",
		Execution: &Execution{Layout: abi.LayoutLegacy, Output: "ignored"},
	})
	want := map[string]interface{}{
		"kind":  "execute",
		"error": "failed to load toolchain module",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("error shape mismatch (-want +got):\n%s", diff)
	}
}
