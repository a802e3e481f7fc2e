package cache

import (
	"context"
	"fmt"

	"github.com/specialistvlad/pipeforge/internal/artifact"
	"github.com/specialistvlad/pipeforge/internal/ctxlog"
	"github.com/specialistvlad/pipeforge/internal/fingerprint"
	"github.com/specialistvlad/pipeforge/internal/graph"
	"github.com/specialistvlad/pipeforge/internal/record"
)

// Enabled resolves the caching tri-state for a step: an explicit step-level
// setting always wins, otherwise the pipeline-level setting applies, and
// caching defaults to enabled when neither is set.
func Enabled(step, pipeline *bool) bool {
	if step != nil {
		return *step
	}
	if pipeline != nil {
		return *pipeline
	}
	return true
}

// Decision is the cache verdict for one step of an upcoming run.
type Decision struct {
	// Hit is true when a prior result can be reused without executing
	// the step.
	Hit bool
	// Key is the step's cache identity for this attempt.
	Key fingerprint.Key
	// Prior is the reused step run on a hit, nil otherwise.
	Prior *record.StepRun
}

// Resolution holds one decision per step id.
type Resolution map[string]Decision

// Resolve walks the graph in topological order and decides HIT or MISS per
// step. A step is a hit iff caching is enabled for it, its key is not
// disabled, every predecessor is itself a hit, a prior success with an
// identical key exists in the index, and that success's artifacts are still
// retrievable. An unretrievable artifact forces a MISS even on a key match,
// keeping the cache self-healing rather than trust-the-index.
func Resolve(ctx context.Context, g *graph.Graph, keys map[string]fingerprint.Key,
	index record.Store, artifacts artifact.Store) (Resolution, error) {

	logger := ctxlog.FromContext(ctx)
	resolution := make(Resolution, len(g.Nodes))

	for _, stepID := range g.TopoOrder() {
		node := g.Node(stepID)
		key := keys[stepID]
		decision := Decision{Key: key}

		hit, err := resolveStep(ctx, node, key, g, resolution, index, artifacts)
		if err != nil {
			return nil, fmt.Errorf("resolving cache for step %q: %w", stepID, err)
		}
		if hit != nil {
			logger.Debug("Cache hit.", "step", stepID)
			decision.Hit = true
			decision.Prior = hit
		} else {
			logger.Debug("Cache miss.", "step", stepID)
		}
		resolution[stepID] = decision
	}
	return resolution, nil
}

// resolveStep returns the reusable prior step run, or nil for a MISS.
func resolveStep(ctx context.Context, node *graph.Node, key fingerprint.Key,
	g *graph.Graph, resolved Resolution, index record.Store, artifacts artifact.Store) (*record.StepRun, error) {

	logger := ctxlog.FromContext(ctx)
	spec := node.Spec

	if !Enabled(spec.Cache, g.Cache) || key.Disabled {
		return nil, nil
	}

	// Every predecessor, data or order-only, must itself be reusable;
	// a MISS upstream means this step observes fresh effects and must
	// re-run even if its own key were to match.
	for depID := range node.Deps {
		if !resolved[depID].Hit {
			return nil, nil
		}
	}

	prior, err := index.FindCached(ctx, key.Digest)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, nil
	}

	// The prior success must cover every declared output and all of its
	// artifacts must still exist in the store.
	for _, output := range spec.OutputNames() {
		handle, ok := prior.Artifacts[output]
		if !ok {
			logger.Warn("Prior run is missing a declared output, forcing MISS.",
				"step", spec.ID, "output", output)
			return nil, nil
		}
		exists, err := artifacts.Exists(ctx, handle.Locator)
		if err != nil {
			return nil, err
		}
		if !exists {
			logger.Warn("Cached artifact no longer retrievable, forcing MISS.",
				"step", spec.ID, "locator", handle.Locator)
			return nil, nil
		}
	}
	return prior, nil
}
