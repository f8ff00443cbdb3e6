package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rendis/conveyor/internal/engine"
	"github.com/rendis/conveyor/internal/expressions"
	"github.com/rendis/conveyor/internal/logging"
	"github.com/rendis/conveyor/internal/station"
	"github.com/rendis/conveyor/internal/stations"
	"github.com/rendis/conveyor/internal/store"
	"github.com/rendis/conveyor/pkg/mcp"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "version" || os.Args[1] == "--version") {
		printVersion()
		return
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "conveyor:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()

	// Logs go to stderr; stdout belongs to the MCP stdio transport.
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open log store: %w", err)
	}
	defer logStore.Close()

	registry := station.NewRegistry()
	if err := stations.RegisterBuiltins(registry, nil, nil, logger); err != nil {
		return fmt.Errorf("register stations: %w", err)
	}

	executor := engine.NewExecutor(registry, logStore, logger)

	srv := mcp.NewConveyorServer(mcp.ConveyorServerDeps{
		Executor: executor,
		Registry: registry,
		Store:    logStore,
		JQ:       expressions.NewGoJQEngine(),
		Logger:   logger,
	})

	logger.Info("conveyor server starting",
		"version", version,
		"store", cfg.Store,
		"stations", registry.Count(),
	)

	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("conveyor server stopped")
	return nil
}

func openStore(ctx context.Context, cfg Config) (store.LogStore, error) {
	switch cfg.Store {
	case "libsql":
		return store.NewLibSQLStore(ctx, cfg.DBPath)
	case "", "file":
		return store.NewFileStore(cfg.LogDir)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}
