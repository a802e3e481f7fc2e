package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/pipeforge/internal/artifact"
	"github.com/specialistvlad/pipeforge/internal/fingerprint"
	"github.com/specialistvlad/pipeforge/internal/graph"
	"github.com/specialistvlad/pipeforge/internal/model"
	"github.com/specialistvlad/pipeforge/internal/record"
)

func boolPtr(b bool) *bool { return &b }

func TestEnabled(t *testing.T) {
	// Step override always wins, pipeline default applies otherwise,
	// caching is on when nothing is set.
	assert.True(t, Enabled(nil, nil))
	assert.True(t, Enabled(boolPtr(true), boolPtr(false)))
	assert.True(t, Enabled(boolPtr(true), nil))
	assert.False(t, Enabled(boolPtr(false), boolPtr(true)))
	assert.False(t, Enabled(boolPtr(false), nil))
	assert.True(t, Enabled(nil, boolPtr(true)))
	assert.False(t, Enabled(nil, boolPtr(false)))
}

type fixture struct {
	graph     *graph.Graph
	keys      map[string]fingerprint.Key
	index     *record.MemoryStore
	artifacts *artifact.MemoryStore
}

// newFixture compiles load -> train and seeds stable keys.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	g, err := graph.Build(context.Background(), &model.Pipeline{
		Name: "demo",
		Invocations: []*model.Invocation{
			{ID: "load", Handler: "load", Outputs: []model.OutputDecl{{Name: "out"}}},
			{
				ID: "train", Handler: "train",
				Inputs:  map[string]model.InputRef{"data": model.DataRef("load", "out")},
				Outputs: []model.OutputDecl{{Name: "model"}},
			},
		},
	}, nil)
	require.NoError(t, err)

	return &fixture{
		graph: g,
		keys: map[string]fingerprint.Key{
			"load":  {Digest: "key-load"},
			"train": {Digest: "key-train"},
		},
		index:     record.NewMemoryStore(),
		artifacts: artifact.NewMemoryStore(),
	}
}

// seedSuccess records a prior successful run for both steps and stores the
// matching artifacts.
func (f *fixture) seedSuccess(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	run := record.New("run-0", "demo", []string{"load", "train"})
	for stepID, output := range map[string]string{"load": "out", "train": "model"} {
		locator := artifact.Locator(stepID, output, "run-0")
		require.NoError(t, f.artifacts.Write(ctx, locator, []byte("bytes")))
		step := run.Steps[stepID]
		step.Status = record.StepSucceeded
		step.CacheKey = f.keys[stepID].Digest
		step.Artifacts = map[string]artifact.Handle{
			output: {ID: "art-" + stepID, Output: output, Locator: locator, Tag: "json"},
		}
		step.Started, step.Ended = now, now
	}
	run.Status = record.RunSuccessful
	run.Ended = now
	require.NoError(t, f.index.SaveRun(ctx, run))
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("no history means all MISS", func(t *testing.T) {
		f := newFixture(t)
		res, err := Resolve(ctx, f.graph, f.keys, f.index, f.artifacts)
		require.NoError(t, err)
		assert.False(t, res["load"].Hit)
		assert.False(t, res["train"].Hit)
	})

	t.Run("matching history with artifacts means all HIT", func(t *testing.T) {
		f := newFixture(t)
		f.seedSuccess(t)

		res, err := Resolve(ctx, f.graph, f.keys, f.index, f.artifacts)
		require.NoError(t, err)
		assert.True(t, res["load"].Hit)
		assert.True(t, res["train"].Hit)
		require.NotNil(t, res["train"].Prior)
		assert.Equal(t, "art-train", res["train"].Prior.Artifacts["model"].ID)
	})

	t.Run("upstream MISS forces downstream MISS", func(t *testing.T) {
		f := newFixture(t)
		f.seedSuccess(t)
		// A changed upstream key simulates an edited step.
		f.keys["load"] = fingerprint.Key{Digest: "key-load-v2"}

		res, err := Resolve(ctx, f.graph, f.keys, f.index, f.artifacts)
		require.NoError(t, err)
		assert.False(t, res["load"].Hit)
		assert.False(t, res["train"].Hit)
	})

	t.Run("missing artifact forces MISS on key match", func(t *testing.T) {
		f := newFixture(t)
		f.seedSuccess(t)
		f.artifacts.Delete(artifact.Locator("load", "out", "run-0"))

		res, err := Resolve(ctx, f.graph, f.keys, f.index, f.artifacts)
		require.NoError(t, err)
		assert.False(t, res["load"].Hit, "self-healing: lost artifact must re-execute")
		assert.False(t, res["train"].Hit)
	})

	t.Run("disabled key never hits", func(t *testing.T) {
		f := newFixture(t)
		f.seedSuccess(t)
		f.keys["load"] = fingerprint.Key{Digest: f.keys["load"].Digest, Disabled: true}

		res, err := Resolve(ctx, f.graph, f.keys, f.index, f.artifacts)
		require.NoError(t, err)
		assert.False(t, res["load"].Hit)
	})

	t.Run("step-level cache off never hits", func(t *testing.T) {
		f := newFixture(t)
		f.seedSuccess(t)
		f.graph.Nodes["load"].Spec.Cache = boolPtr(false)

		res, err := Resolve(ctx, f.graph, f.keys, f.index, f.artifacts)
		require.NoError(t, err)
		assert.False(t, res["load"].Hit)
	})
}
