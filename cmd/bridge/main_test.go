package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
	}

	for _, tt := range tests {
		logger, err := newLogger(tt.level)
		if err != nil {
			t.Fatalf("newLogger(%q) failed: %v", tt.level, err)
		}
		if !logger.Core().Enabled(tt.want) || (tt.want > zapcore.DebugLevel && logger.Core().Enabled(tt.want-1)) {
			t.Errorf("newLogger(%q) does not log at exactly %s", tt.level, tt.want)
		}
	}

	if _, err := newLogger("loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestAwaitServerDrainsAfterCancel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	var drained atomic.Bool

	cancel()
	go func() {
		time.Sleep(50 * time.Millisecond)
		drained.Store(true)
		served <- nil
	}()

	awaitServer(ctx, served, 5*time.Second, logger)

	if !drained.Load() {
		t.Fatal("awaitServer returned before the server stopped")
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected logs: %v", logs.All())
	}
}

func TestAwaitServerGraceExpires(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	awaitServer(ctx, make(chan error), 10*time.Millisecond, logger)

	if logs.FilterMessage("Server did not stop before shutdown").Len() != 1 {
		t.Errorf("expected a grace expiry warning, got %v", logs.All())
	}
}

func TestAwaitServerReportsError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	served := make(chan error, 1)
	served <- errors.New("listen tcp: address in use")

	awaitServer(context.Background(), served, time.Second, logger)

	if logs.FilterMessage("Server error").Len() != 1 {
		t.Errorf("expected the server error to be logged, got %v", logs.All())
	}
}
