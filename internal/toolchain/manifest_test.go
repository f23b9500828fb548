package toolchain

import (
	"os"
	"path/filepath"
	"testing"

	abi "github.com/woxQAQ/xlang-bridge/api/wasm"
)

// writeModuleDir lays down a manifest and, when wasm is non-nil, the binary
// it references.
func writeModuleDir(t *testing.T, manifest string, wasm []byte) string {
	t.Helper()
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	if wasm != nil {
		if err := os.WriteFile(filepath.Join(dir, "xlang.wasm"), wasm, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const validManifest = `
name: xlang
version: 0.4.0
protocol: extended
wasm:
  file: xlang.wasm
author: xlang authors
license: MIT
`

func TestParseManifest_Valid(t *testing.T) {
	dir := writeModuleDir(t, validManifest, []byte{0})

	manifest, err := ParseManifest(dir)
	if err != nil {
		t.Fatalf("ParseManifest() failed: %v", err)
	}

	if manifest.Name != "xlang" {
		t.Errorf("expected Name 'xlang', got '%s'", manifest.Name)
	}

	if manifest.Version != "0.4.0" {
		t.Errorf("expected Version '0.4.0', got '%s'", manifest.Version)
	}

	if manifest.Layout() != abi.LayoutExtended {
		t.Errorf("expected extended layout, got '%s'", manifest.Layout())
	}

	if manifest.WasmPath() != filepath.Join(dir, "xlang.wasm") {
		t.Errorf("unexpected WasmPath '%s'", manifest.WasmPath())
	}

	if manifest.WASI {
		t.Error("wasi should default to false")
	}

	// Export names fall back to the ABI defaults.
	want := ExportNames{
		AllocSource: "allocSource",
		CodeGen:     "codeGen",
		Execute:     "execute",
		Memory:      "memory",
	}
	if manifest.Exports != want {
		t.Errorf("Exports = %+v, want %+v", manifest.Exports, want)
	}

	if manifest.String() != "xlang@0.4.0" {
		t.Errorf("String() = %s", manifest.String())
	}
}

func TestParseManifest_ExportOverrides(t *testing.T) {
	dir := writeModuleDir(t, validManifest+`
exports:
  codegen: xlang_codegen
  memory: heap
`, []byte{0})

	manifest, err := ParseManifest(dir)
	if err != nil {
		t.Fatalf("ParseManifest() failed: %v", err)
	}

	if manifest.Exports.CodeGen != "xlang_codegen" || manifest.Exports.Memory != "heap" {
		t.Errorf("overrides not applied: %+v", manifest.Exports)
	}
	if manifest.Exports.Execute != "execute" {
		t.Errorf("unset export should keep default, got %s", manifest.Exports.Execute)
	}
}

func TestParseManifest_Remote(t *testing.T) {
	dir := writeModuleDir(t, `
name: xlang
version: 1.0.0
protocol: legacy
wasm:
  file: https://example.com/xlang.wasm
`, nil)

	manifest, err := ParseManifest(dir)
	if err != nil {
		t.Fatalf("remote manifest should not require a local file: %v", err)
	}
	if !manifest.IsRemote() {
		t.Error("expected IsRemote() to be true")
	}
	if manifest.WasmPath() != "https://example.com/xlang.wasm" {
		t.Errorf("WasmPath() = %s", manifest.WasmPath())
	}
}

func TestParseManifest_NotFound(t *testing.T) {
	_, err := ParseManifest(filepath.Join(t.TempDir(), "nonexistent"))
	if err == nil {
		t.Fatal("ParseManifest() should fail for nonexistent directory")
	}

	if _, ok := err.(*ManifestNotFoundError); !ok {
		t.Errorf("expected ManifestNotFoundError, got %T", err)
	}
}

func TestParseManifest_InvalidYAML(t *testing.T) {
	dir := writeModuleDir(t, "name: [unterminated\n", nil)

	_, err := ParseManifest(dir)
	if _, ok := err.(*ManifestParseError); !ok {
		t.Errorf("expected ManifestParseError, got %T", err)
	}
}

func TestParseManifest_Validation(t *testing.T) {
	tests := []struct {
		name      string
		manifest  string
		wantField string
	}{
		{
			name:      "missing name",
			manifest:  "version: 1\nprotocol: legacy\nwasm:\n  file: xlang.wasm\n",
			wantField: "name",
		},
		{
			name:      "missing version",
			manifest:  "name: xlang\nprotocol: legacy\nwasm:\n  file: xlang.wasm\n",
			wantField: "version",
		},
		{
			name:      "unknown protocol",
			manifest:  "name: xlang\nversion: 1\nprotocol: v3\nwasm:\n  file: xlang.wasm\n",
			wantField: "protocol",
		},
		{
			name:      "missing wasm file",
			manifest:  "name: xlang\nversion: 1\nprotocol: legacy\n",
			wantField: "wasm.file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeModuleDir(t, tt.manifest, []byte{0})

			_, err := ParseManifest(dir)
			verr, ok := err.(*ManifestValidationError)
			if !ok {
				t.Fatalf("expected ManifestValidationError, got %T (%v)", err, err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %s, want %s", verr.Field, tt.wantField)
			}
		})
	}
}

func TestParseManifest_WasmNotFound(t *testing.T) {
	dir := writeModuleDir(t, validManifest, nil)

	_, err := ParseManifest(dir)
	if _, ok := err.(*WasmNotFoundError); !ok {
		t.Errorf("expected WasmNotFoundError, got %T", err)
	}
}

func TestParseManifest_ProtocolFromConfig(t *testing.T) {
	dir := writeModuleDir(t, "name: xlang\nversion: 1\nwasm:\n  file: xlang.wasm\n", []byte{0})

	manifest, err := ParseManifest(dir)
	if err != nil {
		t.Fatalf("a manifest without protocol should parse: %v", err)
	}
	if manifest.Layout() != "" {
		t.Errorf("Layout() = %q, want empty", manifest.Layout())
	}
}
