package worker

import (
	"fmt"

	"github.com/woxQAQ/xlang-bridge/pkg/protocol"
)

// UnknownKindError occurs when a request names a kind the worker does not
// handle. It is only logged; the host gets no response.
type UnknownKindError struct {
	Kind protocol.Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown request kind '%s'", e.Kind)
}
