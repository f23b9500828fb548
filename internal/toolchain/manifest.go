package toolchain

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	abi "github.com/woxQAQ/xlang-bridge/api/wasm"
	"gopkg.in/yaml.v3"
)

// Manifest represents the toolchain manifest.yaml structure.
type Manifest struct {
	Name     string      `yaml:"name"`
	Version  string      `yaml:"version"`
	Protocol string      `yaml:"protocol"`
	WASI     bool        `yaml:"wasi"`
	Wasm     WasmConfig  `yaml:"wasm"`
	Exports  ExportNames `yaml:"exports"`
	Author   string      `yaml:"author"`
	License  string      `yaml:"license"`

	// Internal fields
	dir string // Directory containing manifest
}

// WasmConfig holds Wasm module configuration.
type WasmConfig struct {
	// File is a path relative to the manifest, or an http(s) URL.
	File string `yaml:"file"`
}

// ExportNames overrides the default ABI export names.
type ExportNames struct {
	AllocSource string `yaml:"alloc_source"`
	CodeGen     string `yaml:"codegen"`
	Execute     string `yaml:"execute"`
	Memory      string `yaml:"memory"`
}

// ParseManifest reads and parses manifest.yaml from a directory.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, "manifest.yaml")

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir
	m.Exports = m.Exports.withDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "name",
			Message: "name is required",
		}
	}

	if m.Version == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "version",
			Message: "version is required",
		}
	}

	// An empty protocol defers to the service configuration.
	if _, err := abi.ParseLayout(m.Protocol); m.Protocol != "" && err != nil {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "protocol",
			Message: err.Error(),
		}
	}

	if m.Wasm.File == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "wasm.file",
			Message: "wasm.file is required",
		}
	}

	if m.IsRemote() {
		return nil
	}

	if _, err := os.Stat(m.WasmPath()); os.IsNotExist(err) {
		return &WasmNotFoundError{
			ManifestPath: m.Path(),
			WasmFile:     m.Wasm.File,
		}
	}

	return nil
}

// Layout returns the execute record layout the module speaks, or "" when
// the manifest leaves it to configuration.
func (m *Manifest) Layout() abi.Layout {
	return abi.Layout(m.Protocol)
}

// IsRemote reports whether the module is fetched over HTTP(S).
func (m *Manifest) IsRemote() bool {
	return strings.HasPrefix(m.Wasm.File, "http://") || strings.HasPrefix(m.Wasm.File, "https://")
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, "manifest.yaml")
}

// WasmPath returns the URL or the path of the Wasm file.
func (m *Manifest) WasmPath() string {
	if m.IsRemote() {
		return m.Wasm.File
	}
	return filepath.Join(m.dir, m.Wasm.File)
}

// String identifies the module in logs.
func (m *Manifest) String() string {
	return fmt.Sprintf("%s@%s", m.Name, m.Version)
}

func (e ExportNames) withDefaults() ExportNames {
	if e.AllocSource == "" {
		e.AllocSource = abi.ExportAllocSource
	}
	if e.CodeGen == "" {
		e.CodeGen = abi.ExportCodeGen
	}
	if e.Execute == "" {
		e.Execute = abi.ExportExecute
	}
	if e.Memory == "" {
		e.Memory = abi.ExportMemory
	}
	return e
}
