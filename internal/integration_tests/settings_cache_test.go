package integration_tests

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/pipeforge/internal/app"
	"github.com/specialistvlad/pipeforge/internal/record"
	"github.com/specialistvlad/pipeforge/internal/registry"
)

// trainerModule counts executions of its single handler.
type trainerModule struct {
	calls atomic.Int64
}

func (m *trainerModule) Register(r *registry.Registry) {
	r.RegisterHandler("train", func(context.Context, map[string]cty.Value, map[string]cty.Value) (map[string]cty.Value, error) {
		m.calls.Add(1)
		return map[string]cty.Value{"weights": cty.StringVal("w")}, nil
	}, "train/v1")
}

func settingsPipeline(cpu int, cacheRelevant bool) string {
	relevant := ""
	if cacheRelevant {
		relevant = `cache_settings = ["resources.docker"]`
	}
	return fmt.Sprintf(`
pipeline "tuning" {}

step "train" {
  handler = "train"
  %s

  settings {
    resources "docker" {
      cpu = %d
    }
  }

  output "weights" {}
}
`, relevant, cpu)
}

func runSettingsPipeline(t *testing.T, cfg app.Config, module *trainerModule, pipelineHCL string) *record.RunRecord {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PipelinePath, "main.hcl"), []byte(pipelineHCL), 0o600))
	testApp, _ := app.SetupAppTest(t, cfg, module)
	run, err := testApp.Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, testApp.Close())
	return run
}

// Test for: a settings category only invalidates the cache when the step
// declares it cache-relevant.
func TestCaching_SettingsRelevance(t *testing.T) {
	t.Run("irrelevant settings change keeps the hit", func(t *testing.T) {
		tempDir := t.TempDir()
		cfg := app.Config{
			PipelinePath: tempDir,
			StatePath:    filepath.Join(tempDir, "state.db"),
			ArtifactRoot: filepath.Join(tempDir, "artifacts"),
		}
		module := &trainerModule{}

		runSettingsPipeline(t, cfg, module, settingsPipeline(2, false))
		second := runSettingsPipeline(t, cfg, module, settingsPipeline(8, false))

		assert.Equal(t, []string{"train"}, second.Reused())
		assert.EqualValues(t, 1, module.calls.Load())
	})

	t.Run("relevant settings change forces a rerun", func(t *testing.T) {
		tempDir := t.TempDir()
		cfg := app.Config{
			PipelinePath: tempDir,
			StatePath:    filepath.Join(tempDir, "state.db"),
			ArtifactRoot: filepath.Join(tempDir, "artifacts"),
		}
		module := &trainerModule{}

		runSettingsPipeline(t, cfg, module, settingsPipeline(2, true))
		second := runSettingsPipeline(t, cfg, module, settingsPipeline(8, true))

		assert.Equal(t, []string{"train"}, second.Executed())
		assert.EqualValues(t, 2, module.calls.Load())
	})

	t.Run("unchanged relevant settings keep the hit", func(t *testing.T) {
		tempDir := t.TempDir()
		cfg := app.Config{
			PipelinePath: tempDir,
			StatePath:    filepath.Join(tempDir, "state.db"),
			ArtifactRoot: filepath.Join(tempDir, "artifacts"),
		}
		module := &trainerModule{}

		runSettingsPipeline(t, cfg, module, settingsPipeline(4, true))
		second := runSettingsPipeline(t, cfg, module, settingsPipeline(4, true))

		assert.Equal(t, []string{"train"}, second.Reused())
		assert.EqualValues(t, 1, module.calls.Load())
	})
}

// Test for: step-level cache = false always executes but leaves the rest of
// the pipeline cacheable.
func TestCaching_StepOptOut(t *testing.T) {
	tempDir := t.TempDir()
	cfg := app.Config{
		PipelinePath: tempDir,
		StatePath:    filepath.Join(tempDir, "state.db"),
		ArtifactRoot: filepath.Join(tempDir, "artifacts"),
	}

	pipelineHCL := `
pipeline "optout" {}

step "cached" {
  handler = "train"
  output "weights" {}
}

step "fresh" {
  handler = "train"
  cache   = false
  output "weights" {}
}
`
	module := &trainerModule{}
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "main.hcl"), []byte(pipelineHCL), 0o600))

	app1, _ := app.SetupAppTest(t, cfg, module)
	_, err := app1.Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, app1.Close())

	app2, _ := app.SetupAppTest(t, cfg, module)
	second, err := app2.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"cached"}, second.Reused())
	assert.Equal(t, []string{"fresh"}, second.Executed())
	assert.EqualValues(t, 3, module.calls.Load())
}
