package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woxQAQ/xlang-bridge/internal/config"
	"github.com/woxQAQ/xlang-bridge/internal/toolchain"
	"github.com/woxQAQ/xlang-bridge/internal/wasm"
	"github.com/woxQAQ/xlang-bridge/internal/worker"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// shutdownGrace bounds the wait for in-flight requests after a signal. A
// stdio server blocked on a read may never return.
const shutdownGrace = 5 * time.Second

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error); overrides config")
	port := flag.Int("port", -1, "TCP port to serve on (0 for stdio); overrides config")
	moduleDir := flag.String("module-dir", "", "Directory holding manifest.yaml; overrides config")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *port >= 0 {
		cfg.ListenPort = *port
	}
	if *moduleDir != "" {
		cfg.ModuleDir = *moduleDir
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		zap.NewExample().Fatal("Failed to create logger", zap.Error(err))
	}
	defer logger.Sync()

	logger.Info("Starting xlang-bridge",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
		zap.String("module_dir", cfg.ModuleDir),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runtime, err := wasm.NewRuntime(ctx, logger, &wasm.RuntimeConfig{
		MemoryPages:  cfg.Wasm.MemoryPages,
		DebugEnabled: cfg.Wasm.Debug,
		CacheDir:     cfg.Wasm.CacheDir,
		MaxInstances: cfg.Wasm.MaxInstances,
	})
	if err != nil {
		logger.Fatal("Failed to initialize Wasm runtime", zap.Error(err))
	}

	// Instantiation starts right away; requests wait for it.
	loader := toolchain.NewLoader(cfg, runtime, wasm.NewHostFunctions(logger), logger)
	loader.Start(ctx)

	w := worker.New(loader, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// Start server (stdio or TCP)
	served := make(chan error, 1)
	go func() {
		if cfg.ListenPort > 0 {
			served <- w.ServeTCP(ctx, cfg.ListenPort)
			return
		}
		if term.IsTerminal(int(os.Stdin.Fd())) {
			logger.Info("Reading newline-delimited JSON requests from the terminal")
		}
		served <- w.ServeStdio(ctx)
	}()

	awaitServer(ctx, served, shutdownGrace, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := loader.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}

	logger.Info("Server shutdown complete")
}

// awaitServer returns once the server stops. After ctx is cancelled it waits
// up to grace for the server to drain before giving up.
func awaitServer(ctx context.Context, served <-chan error, grace time.Duration, logger *zap.Logger) {
	select {
	case err := <-served:
		reportServed(err, logger)
		return
	case <-ctx.Done():
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case err := <-served:
		reportServed(err, logger)
	case <-timer.C:
		logger.Warn("Server did not stop before shutdown", zap.Duration("grace", grace))
	}
}

func reportServed(err error, logger *zap.Logger) {
	if err != nil {
		logger.Error("Server error", zap.Error(err))
	}
}

// newLogger writes to stderr; stdout carries protocol responses.
func newLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config
	if level == "debug" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	return cfg.Build()
}
