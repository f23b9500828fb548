package wasm

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// HostModuleName is the import module guests use to reach host functions.
const HostModuleName = "host"

// HostFunctionsImpl implements host functions for Wasm modules.
type HostFunctionsImpl struct {
	logger *zap.Logger
}

// NewHostFunctions creates a new host functions implementation.
func NewHostFunctions(logger *zap.Logger) *HostFunctionsImpl {
	return &HostFunctionsImpl{
		logger: logger.With(zap.String("component", "wasm-host")),
	}
}

// logMessage is called by Wasm modules to log messages.
// Signature: log_message(level, ptr, length)
// level: 0 = debug, 1 = info, 2 = warn, 3 = error
func (h *HostFunctionsImpl) logMessage(ctx context.Context, mod api.Module, level uint32, ptr uint32, length uint32) {
	msg, ok := NewMemory(mod).Read(ptr, length)
	if !ok {
		h.logger.Error("Failed to read log message from Wasm memory",
			zap.Error(&HostFunctionError{
				FunctionName: "log_message",
				Err:          &MemoryAccessError{Operation: "read", Address: ptr, Length: length, Err: errOutOfRange},
			}),
		)
		return
	}

	guest := zap.String("guest", mod.Name())
	switch level {
	case 0:
		h.logger.Debug(string(msg), guest)
	case 1:
		h.logger.Info(string(msg), guest)
	case 2:
		h.logger.Warn(string(msg), guest)
	case 3:
		h.logger.Error(string(msg), guest)
	default:
		h.logger.Info(string(msg), guest)
	}
}
