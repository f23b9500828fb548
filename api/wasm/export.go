//go:build wasm

package wasm

// This file documents the export surface a toolchain module must provide.
// The bridge calls nothing else; every record it reads back is a run of
// little-endian uint32 words in the module's linear memory.
//
// NOTE: uint32 is used for pointers and lengths because WebAssembly uses a 32-bit
// linear memory model. All Wasm memory addresses are represented as 32-bit integers
// (addresses 0 to 4GB).

// Exported functions that toolchain modules must implement:
//
// //go:wasmexport allocSource
// func allocSource(length uint32) uint32
//
// //go:wasmexport codeGen
// func codeGen(mode, flavor uint32) uint32 // 0 on success, else *ErrorRecord
//
// //go:wasmexport execute
// func execute() uint32 // *LegacyRecord or *ExtendedRecord
//
// The linear memory must be exported as "memory".
