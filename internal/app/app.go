// Package app wires the application together: it loads the configuration,
// applies CLI overrides, performs the eager validation pass, selects the
// simulator adapter and runs the generator.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/phylogen/internal/backend"
	"github.com/vk/phylogen/internal/config"
	"github.com/vk/phylogen/internal/ctxlog"
	"github.com/vk/phylogen/internal/generate"
)

// App encapsulates the application's dependencies, configuration and
// lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	model   *config.Model
	adapter backend.Adapter
	runner  *generate.Runner
}

// NewApp constructs the application. It panics on critical configuration
// errors; the entrypoint recovers and turns the panic into a clean exit
// message.
func NewApp(outW io.Writer, appConfig *Config) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	model, err := config.Load(appConfig.ConfigPath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	applyOverrides(model, appConfig)
	logger.Debug("Configuration loaded.",
		"variables", len(model.Variables), "parameters", len(model.Params), "splits", len(model.Dataset.Splits))

	adapter := selectAdapter(model, appConfig, logger)

	// The runner constructor performs the eager validation pass: the
	// dependency graph, cycle check and every statically checkable skyline
	// invariant fail here, before any sample is drawn.
	runner, err := generate.NewRunner(model, adapter)
	if err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}
	runner.ShowProgress = appConfig.Progress
	logger.Debug("Configuration validation passed.")

	return &App{outW: outW, logger: logger, model: model, adapter: adapter, runner: runner}
}

func applyOverrides(model *config.Model, appConfig *Config) {
	if appConfig.OutputDir != "" {
		model.Dataset.OutputDir = appConfig.OutputDir
	}
	if appConfig.Workers > 0 {
		model.Dataset.Workers = appConfig.Workers
	}
	if appConfig.Seed != nil {
		model.Dataset.Seed = appConfig.Seed
	}
}

func selectAdapter(model *config.Model, appConfig *Config, logger *slog.Logger) backend.Adapter {
	if appConfig.DryRun || model.Simulator == nil {
		if model.Simulator == nil && !appConfig.DryRun {
			logger.Warn("No simulator block configured; resolving parameters without simulation.")
		}
		return backend.NewStub()
	}
	return backend.NewCommand(model.Simulator)
}

// Model returns the loaded configuration model. This is primarily for testing.
func (a *App) Model() *config.Model { return a.model }

// Run executes the generation run.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if err := a.runner.Run(ctx); err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}
