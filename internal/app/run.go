package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/pipeforge/internal/cache"
	"github.com/specialistvlad/pipeforge/internal/ctxlog"
	"github.com/specialistvlad/pipeforge/internal/fingerprint"
	"github.com/specialistvlad/pipeforge/internal/graph"
	"github.com/specialistvlad/pipeforge/internal/model"
	"github.com/specialistvlad/pipeforge/internal/record"
	"github.com/specialistvlad/pipeforge/internal/scheduler"
)

// Load reads the configured pipeline definition from disk.
func (a *App) Load(ctx context.Context) (*model.Pipeline, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	return a.loader.Load(ctx, a.config.PipelinePath)
}

// Compile builds the frozen execution graph from a pipeline definition.
func (a *App) Compile(ctx context.Context, pipeline *model.Pipeline) (*graph.Graph, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	return graph.Build(ctx, pipeline, nil)
}

// Run fingerprints the graph, resolves the cache against prior runs, and
// schedules one run to completion. The returned record is persisted exactly
// once, after the run settles.
func (a *App) Run(ctx context.Context, g *graph.Graph) (*record.RunRecord, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	keys, err := fingerprint.NewEngine(a.registry).Keys(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting graph: %w", err)
	}

	var resolution cache.Resolution
	if a.config.NoCache {
		a.logger.Info("Caching disabled for this run, executing every step.")
		resolution = make(cache.Resolution, len(g.Nodes))
		for stepID := range g.Nodes {
			resolution[stepID] = cache.Decision{Key: keys[stepID]}
		}
	} else {
		resolution, err = cache.Resolve(ctx, g, keys, a.records, a.artifacts)
		if err != nil {
			return nil, fmt.Errorf("resolving cache: %w", err)
		}
	}

	sched := scheduler.New(g, resolution, a.runner, a.artifacts, a.materializers, a.records, a.config.WorkerCount)
	return sched.Run(ctx)
}

// Execute is the full lifecycle used by the CLI: load, compile, run.
func (a *App) Execute(ctx context.Context) (*record.RunRecord, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Execute started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthCheckServer(ctx)
	}

	pipeline, err := a.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading pipeline: %w", err)
	}
	a.logger.Info("Pipeline loaded.", "pipeline", pipeline.Name, "steps", len(pipeline.Invocations))

	g, err := a.Compile(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("compiling pipeline: %w", err)
	}
	a.logger.Debug("Execution graph built.", "node_count", len(g.Nodes))

	run, err := a.Run(ctx, g)
	if err != nil {
		return run, fmt.Errorf("executing pipeline: %w", err)
	}
	a.logger.Debug("App.Execute finished.")
	return run, nil
}

// LookupCacheKey returns the cache key recorded for a step in a run.
func (a *App) LookupCacheKey(stepID string, run *record.RunRecord) (string, bool) {
	if run == nil {
		return "", false
	}
	step, ok := run.Steps[stepID]
	if !ok {
		return "", false
	}
	return step.CacheKey, true
}
