package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"camsync/internal/adapter/filesystem"
	"camsync/internal/adapter/store"
	"camsync/internal/adapter/ui"
	"camsync/internal/config"
	"camsync/internal/metrics"
	"camsync/internal/pkg/logging"
	"camsync/internal/usecase"

	"go.uber.org/zap"
)

// These variables will be set by the linker during build
// -ldflags "-X main.AppID=12345 -X main.AppHash=abcdef..."
var (
	AppID   string
	AppHash string
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.ParseCLI(os.Args[1:], AppID, AppHash)
	if err != nil {
		return err
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}
	defer logging.Sync()
	log := logging.L()

	if cfg.MetricsFile != "" {
		defer func() {
			if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
				log.Warn("failed to write metrics", zap.String("path", cfg.MetricsFile), zap.Error(err))
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := &app{
		cfg:     cfg,
		log:     log,
		fs:      filesystem.NewLocalFileSystem(),
		console: ui.NewConsoleUI(cfg.NonInteractive),
	}

	switch cfg.Command {
	case "import":
		return a.runImport(ctx)
	case "discover":
		return a.runDiscover(ctx)
	case "classify":
		return a.runClassify()
	case "tokens":
		return a.runTokens()
	case "map":
		return a.runMap(ctx)
	case "updates":
		return a.runUpdates(ctx)
	default:
		return fmt.Errorf("unknown command: %s", cfg.Command)
	}
}

type app struct {
	cfg     *config.CLIConfig
	log     *zap.Logger
	fs      *filesystem.LocalFileSystem
	console *ui.ConsoleUI
}

func (a *app) comparer() *usecase.Comparer {
	return usecase.NewComparer(a.fs, a.cfg.ProbeTimeout, a.log)
}

func (a *app) registry() (*usecase.Registry, error) {
	if err := config.EnsureDataDir(a.cfg.DataDir); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return usecase.NewRegistry(store.NewMappingFile(config.MappingsPath(a.cfg.DataDir)), a.comparer(), a.log)
}
