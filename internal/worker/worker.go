// Package worker routes host requests to the toolchain module and turns the
// decoded records into protocol responses.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/woxQAQ/xlang-bridge/internal/bridge"
	"github.com/woxQAQ/xlang-bridge/internal/toolchain"
	"github.com/woxQAQ/xlang-bridge/pkg/protocol"
	"go.uber.org/zap"
)

// Loader yields the toolchain module, waiting for it if needed.
type Loader interface {
	Load(ctx context.Context) (toolchain.Module, error)
}

// Worker owns one toolchain module and serves requests against it one at
// a time.
type Worker struct {
	loader Loader
	logger *zap.Logger

	// maxLine bounds one request line on a stream.
	maxLine int

	// mu keeps a single module call in flight; module memory is shared
	// between every export.
	mu sync.Mutex
}

// New creates a worker.
func New(loader Loader, logger *zap.Logger) *Worker {
	return &Worker{
		loader:  loader,
		logger:  logger.With(zap.String("component", "worker")),
		maxLine: maxMessageSize,
	}
}

// Dispatch handles one request. It returns ok == false for request kinds it
// does not know, after logging them; every other request gets exactly one
// response.
func (w *Worker) Dispatch(ctx context.Context, req *protocol.Request) (*protocol.Response, bool) {
	if req.Kind != protocol.KindCodeGen && req.Kind != protocol.KindExecute {
		w.logger.Error("Dropping request", zap.Error(&UnknownKindError{Kind: req.Kind}))
		return nil, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	module, err := w.loader.Load(ctx)
	if err != nil {
		return w.failure(req.Kind, err), true
	}

	// A running export cannot be interrupted.
	ctx = context.WithoutCancel(ctx)

	if req.Kind == protocol.KindCodeGen {
		return w.codeGen(ctx, module, req), true
	}
	return w.execute(ctx, module), true
}

func (w *Worker) codeGen(ctx context.Context, module toolchain.Module, req *protocol.Request) *protocol.Response {
	if _, err := bridge.EncodeSource(ctx, module, req.Source); err != nil {
		return w.failure(req.Kind, err)
	}

	sel := bridge.Selectors{Mode: uint32(req.Mode), Flavor: uint32(req.Flavor)}
	info, err := bridge.CodeGen(ctx, module, sel)
	if err != nil {
		return w.failure(req.Kind, err)
	}

	resp := &protocol.Response{Kind: protocol.KindCodeGen}
	if info != nil {
		w.logger.Debug("Codegen reported a diagnostic",
			zap.String("message", info.Message),
			zap.Uint32("range_start", info.Range.Start),
			zap.Uint32("range_end", info.Range.End),
		)
		resp.Diagnostic = &protocol.Diagnostic{
			Message:    info.Message,
			RangeStart: info.Range.Start,
			RangeEnd:   info.Range.End,
			Source:     req.Source,
		}
	}
	return resp
}

func (w *Worker) execute(ctx context.Context, module toolchain.Module) *protocol.Response {
	start := time.Now()
	res, err := bridge.Execute(ctx, module, module.Layout())
	elapsed := time.Since(start)
	if err != nil {
		return w.failure(protocol.KindExecute, err)
	}

	w.logger.Debug("Executed program",
		zap.Duration("duration", elapsed),
		zap.Bool("exception", res.Exception != nil),
		zap.Int("results", len(res.Results)),
	)

	return &protocol.Response{
		Kind:       protocol.KindExecute,
		Execution:  toExecution(res),
		DurationMs: float64(elapsed) / float64(time.Millisecond),
	}
}

func (w *Worker) failure(kind protocol.Kind, err error) *protocol.Response {
	w.logger.Error("Request failed", zap.String("kind", string(kind)), zap.Error(err))
	return &protocol.Response{Kind: kind, Error: err.Error()}
}

func toExecution(res *bridge.ExecutionResult) *protocol.Execution {
	e := &protocol.Execution{
		Layout: res.Layout,
		Output: res.Output,
	}

	if res.Results != nil {
		e.Results = make([]protocol.Result, len(res.Results))
		for i, r := range res.Results {
			e.Results[i] = protocol.Result{Label: r.Label, Index: r.Index}
		}
	}

	if res.Exception != nil {
		e.Exception = &protocol.Exception{
			Message:    res.Exception.Message,
			RangeStart: res.Exception.Range.Start,
			RangeEnd:   res.Exception.Range.End,
		}
	}
	return e
}
