package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/paramfn/internal/ctxlog"
	"github.com/vk/paramfn/internal/filestore"
	"github.com/vk/paramfn/internal/inmemorystore"
	"github.com/vk/paramfn/internal/registry"
	"github.com/vk/paramfn/internal/store"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	config   *Config
}

// NewApp is the constructor for the main application. Command output goes to
// outW and logs go to logW. The registry is loaded from the configured store
// before NewApp returns.
func NewApp(outW, logW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New(newStore(cfg))
	if err := reg.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load functions: %w", err)
	}
	logger.Debug("Registry ready.", "storage", cfg.StorageKind, "functions", reg.Len())

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		config:   cfg,
	}, nil
}

func newStore(cfg *Config) store.Store {
	if cfg.StorageKind == StorageMemory {
		return inmemorystore.New()
	}
	return filestore.New(cfg.StoragePath)
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Run executes the configured command.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	cmd := a.config.Command
	a.logger.Debug("App.Run method started.", "command", cmd.Name)

	var err error
	switch cmd.Name {
	case CmdCreate:
		err = a.create(ctx, cmd)
	case CmdGet:
		err = a.get(ctx, cmd)
	case CmdUpdate:
		err = a.update(ctx, cmd)
	case CmdDelete:
		err = a.delete(ctx, cmd)
	case CmdList:
		err = a.list(ctx)
	case CmdCompute:
		err = a.compute(ctx, cmd)
	case CmdServe:
		err = a.serve(ctx)
	case CmdImport:
		err = a.importManifests(ctx, cmd)
	case CmdExport:
		err = a.exportManifest(ctx, cmd)
	default:
		err = fmt.Errorf("unknown command %q", cmd.Name)
	}

	a.logger.Debug("App.Run method finished.", "command", cmd.Name, "failed", err != nil)
	return err
}
