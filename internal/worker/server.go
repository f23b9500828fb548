package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/woxQAQ/xlang-bridge/pkg/protocol"
	"go.uber.org/zap"
)

// maxMessageSize is the default bound on one request line.
const maxMessageSize = 16 << 20

// ServeStdio reads requests from stdin and writes responses to stdout.
func (w *Worker) ServeStdio(ctx context.Context) error {
	w.logger.Info("Serving on stdio")
	return w.Serve(ctx, os.Stdin, os.Stdout)
}

// ServeTCP listens on port and serves every connection until ctx is done.
func (w *Worker) ServeTCP(ctx context.Context, port int) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	return w.ServeListener(ctx, ln)
}

// ServeListener accepts connections on ln. Each connection is its own
// request stream; all of them share the worker.
func (w *Worker) ServeListener(ctx context.Context, ln net.Listener) error {
	w.logger.Info("Serving on TCP", zap.String("addr", ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			w.serveConn(ctx, conn)
		}()
	}
}

func (w *Worker) serveConn(ctx context.Context, conn net.Conn) {
	logger := w.logger.With(zap.String("remote", conn.RemoteAddr().String()))
	logger.Debug("Connection opened")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	if err := w.Serve(ctx, conn, conn); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Warn("Connection closed with error", zap.Error(err))
		return
	}
	logger.Debug("Connection closed")
}

// Serve reads newline-delimited JSON requests from r and writes one JSON
// response line per handled request to out. Malformed and oversized lines
// are logged and skipped. It returns when r is exhausted or ctx is done.
func (w *Worker) Serve(ctx context.Context, r io.Reader, out io.Writer) error {
	br := bufio.NewReaderSize(r, 64*1024)
	enc := json.NewEncoder(out)

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, oversized, readErr := readLine(br, w.maxLine)
		if oversized {
			w.logger.Warn("Skipping oversized request", zap.Int("limit_bytes", w.maxLine))
		} else if err := w.handleLine(ctx, line, enc); err != nil {
			return err
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read request: %w", readErr)
		}
	}
}

func (w *Worker) handleLine(ctx context.Context, line []byte, enc *json.Encoder) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	var req protocol.Request
	if err := json.Unmarshal(line, &req); err != nil {
		w.logger.Warn("Skipping malformed request", zap.Error(err))
		return nil
	}

	resp, ok := w.Dispatch(ctx, &req)
	if !ok {
		return nil
	}
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

// readLine returns the next line including its terminator. A line whose
// content exceeds limit is consumed up to its newline and reported as
// oversized with no data.
func readLine(br *bufio.Reader, limit int) (line []byte, oversized bool, err error) {
	for {
		var chunk []byte
		chunk, err = br.ReadSlice('\n')
		if !oversized {
			if len(bytes.TrimRight(line, "\r\n"))+len(bytes.TrimRight(chunk, "\r\n")) > limit {
				oversized, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return line, oversized, err
	}
}
