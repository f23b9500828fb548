package wasmtest

import (
	"testing"

	wabin "github.com/tetratelabs/wabin/binary"
	"github.com/tetratelabs/wabin/wasm"
)

func TestModuleDecodes(t *testing.T) {
	tests := []struct {
		name        string
		mod         Module
		wantImports int
	}{
		{"plain", Module{CodeGenParams: 2, ExecuteResult: 0xFFFFFFFF}, 0},
		{"with log import", Module{CodeGenParams: 1, Log: &LogCall{Level: 1, Ptr: 8, Length: 2}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := tt.mod
			mod.Segments = []Segment{{Offset: 300, Data: Words(1, 2)}}

			decoded, err := wabin.DecodeModule(mod.Bytes(), wasm.CoreFeaturesV2)
			if err != nil {
				t.Fatalf("DecodeModule failed: %v", err)
			}

			if len(decoded.ImportSection) != tt.wantImports {
				t.Errorf("imports = %d, want %d", len(decoded.ImportSection), tt.wantImports)
			}
			if len(decoded.ExportSection) != 4 {
				t.Errorf("exports = %d, want 4", len(decoded.ExportSection))
			}
			if len(decoded.DataSection) != 1 || len(decoded.DataSection[0].Init) != 8 {
				t.Errorf("unexpected data section %+v", decoded.DataSection)
			}
		})
	}
}

func TestWords(t *testing.T) {
	got := Words(1, 0x01020304)
	want := []byte{1, 0, 0, 0, 4, 3, 2, 1}
	if string(got) != string(want) {
		t.Errorf("Words() = %v, want %v", got, want)
	}
}
