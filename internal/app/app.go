package app

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/pipeforge/internal/artifact"
	"github.com/specialistvlad/pipeforge/internal/hcl"
	"github.com/specialistvlad/pipeforge/internal/materialize"
	"github.com/specialistvlad/pipeforge/internal/record"
	"github.com/specialistvlad/pipeforge/internal/registry"
	"github.com/specialistvlad/pipeforge/internal/runner"
)

// App encapsulates the engine's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	registry      *registry.Registry
	loader        *hcl.Loader
	materializers *materialize.Registry
	artifacts     artifact.Store
	records       record.Store
	runner        runner.Runner

	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All handler modules registered.", "count", len(modules))

	records, err := openRecordStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening run record store: %w", err)
	}
	artifacts, err := openArtifactStore(cfg)
	if err != nil {
		records.Close()
		return nil, fmt.Errorf("opening artifact store: %w", err)
	}

	var backend runner.Runner
	if cfg.RunnerURL != "" {
		logger.Debug("Using remote backend runner.", "url", cfg.RunnerURL)
		backend = runner.NewRemote(cfg.RunnerURL)
	} else {
		logger.Debug("Using in-process backend runner.")
		backend = runner.NewLocal(reg)
	}

	return &App{
		outW:          outW,
		logger:        logger,
		config:        cfg,
		registry:      reg,
		loader:        hcl.NewLoader(),
		materializers: materialize.NewRegistry(),
		artifacts:     artifacts,
		records:       records,
		runner:        backend,
	}, nil
}

func openRecordStore(cfg *Config) (record.Store, error) {
	if cfg.StatePath != "" {
		return record.OpenSQLite(cfg.StatePath)
	}
	return record.NewMemoryStore(), nil
}

func openArtifactStore(cfg *Config) (artifact.Store, error) {
	switch {
	case cfg.RedisAddr != "":
		return artifact.NewRedisStore(cfg.RedisAddr, "pipeforge"), nil
	case cfg.ArtifactRoot != "":
		return artifact.NewLocalStore(cfg.ArtifactRoot)
	default:
		return artifact.NewMemoryStore(), nil
	}
}

// Registry returns the application's handler registry. This is primarily
// for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Materializers returns the materializer registry so callers can register
// additional type tags before running.
func (a *App) Materializers() *materialize.Registry {
	return a.materializers
}

// Records returns the run record store.
func (a *App) Records() record.Store {
	return a.records
}

// Close releases the stores and the backend runner.
func (a *App) Close() error {
	a.closeHealthCheckServer()

	switch b := a.runner.(type) {
	case *runner.Local:
		b.Stop()
	case *runner.Remote:
		b.Close()
	}
	return a.records.Close()
}
