package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/pipeforge/internal/model"
)

func obj(fields map[string]cty.Value) cty.Value {
	return cty.ObjectVal(fields)
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	active := map[string]bool{"resources.docker": true}

	t.Run("pipeline-only fields are inherited", func(t *testing.T) {
		pipeline := model.Settings{
			"resources.docker": obj(map[string]cty.Value{
				"cpu":    cty.NumberIntVal(2),
				"memory": cty.StringVal("4g"),
			}),
		}

		merged, err := Merge(ctx, pipeline, nil, active)
		require.NoError(t, err)
		require.Contains(t, merged.Values, "resources.docker")
		got := merged.Values["resources.docker"].AsValueMap()
		assert.Equal(t, cty.NumberIntVal(2), got["cpu"])
		assert.Equal(t, cty.StringVal("4g"), got["memory"])
	})

	t.Run("step fields override pipeline fields per field", func(t *testing.T) {
		pipeline := model.Settings{
			"resources.docker": obj(map[string]cty.Value{
				"cpu":    cty.NumberIntVal(2),
				"memory": cty.StringVal("4g"),
			}),
		}
		step := model.Settings{
			"resources.docker": obj(map[string]cty.Value{
				"cpu": cty.NumberIntVal(8),
				"gpu": cty.True,
			}),
		}

		merged, err := Merge(ctx, pipeline, step, active)
		require.NoError(t, err)
		got := merged.Values["resources.docker"].AsValueMap()
		// Step wins on shared fields, pipeline-only fields survive,
		// step-only fields are added.
		assert.Equal(t, cty.NumberIntVal(8), got["cpu"])
		assert.Equal(t, cty.StringVal("4g"), got["memory"])
		assert.Equal(t, cty.True, got["gpu"])
	})

	t.Run("step-only category is added", func(t *testing.T) {
		step := model.Settings{
			"resources.docker": obj(map[string]cty.Value{"cpu": cty.NumberIntVal(1)}),
		}

		merged, err := Merge(ctx, nil, step, active)
		require.NoError(t, err)
		assert.Contains(t, merged.Values, "resources.docker")
		assert.False(t, merged.NonBinding["resources.docker"])
	})

	t.Run("unknown category is preserved but non-binding", func(t *testing.T) {
		step := model.Settings{
			"orchestrator.kubeflow": obj(map[string]cty.Value{"namespace": cty.StringVal("ml")}),
		}

		merged, err := Merge(ctx, nil, step, active)
		require.NoError(t, err)
		assert.Contains(t, merged.Values, "orchestrator.kubeflow")
		assert.True(t, merged.NonBinding["orchestrator.kubeflow"])
	})

	t.Run("non-object settings value is rejected", func(t *testing.T) {
		pipeline := model.Settings{
			"resources.docker": obj(map[string]cty.Value{"cpu": cty.NumberIntVal(1)}),
		}
		step := model.Settings{
			"resources.docker": cty.StringVal("not-an-object"),
		}

		_, err := Merge(ctx, pipeline, step, active)
		assert.ErrorContains(t, err, "must be objects")
	})
}
