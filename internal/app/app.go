package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/vk/portflow/internal/binder"
	"github.com/vk/portflow/internal/ctxlog"
	"github.com/vk/portflow/internal/graphio"
	"github.com/vk/portflow/internal/hclexpr"
	"github.com/vk/portflow/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	loader   *graphio.Loader
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	reg.Install(modules...)
	logger.Debug("All operation modules registered.", "count", len(modules))

	if err := reg.Validate(ctx); err != nil {
		// A registry that fails validation is a programmer error.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		loader:   graphio.NewLoader(reg, binder.New(hclexpr.New())),
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
