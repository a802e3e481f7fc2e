package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/pipeforge/internal/record"
	"github.com/specialistvlad/pipeforge/internal/registry"
)

func writePipeline(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipeline.hcl"), []byte(contents), 0o644))
	return dir
}

// doublerModule provides a deterministic handler for end-to-end tests.
type doublerModule struct{}

func (m *doublerModule) Register(r *registry.Registry) {
	r.RegisterHandler("seed", func(context.Context, map[string]cty.Value, map[string]cty.Value) (map[string]cty.Value, error) {
		return map[string]cty.Value{"value": cty.NumberIntVal(21)}, nil
	}, "seed/v1")
	r.RegisterHandler("double", func(_ context.Context, _, inputs map[string]cty.Value) (map[string]cty.Value, error) {
		n, _ := inputs["n"].AsBigFloat().Int64()
		return map[string]cty.Value{"value": cty.NumberIntVal(n * 2)}, nil
	}, "double/v1")
}

const doublerPipeline = `
pipeline "doubling" {}

step "seed" {
  handler = "seed"
  output "value" {}
}

step "double" {
  handler = "double"
  input "n" { value = step.seed.value }
  output "value" {}
}
`

func TestExecuteEndToEnd(t *testing.T) {
	ctx := context.Background()
	testApp, _ := SetupAppTest(t, Config{
		PipelinePath: writePipeline(t, doublerPipeline),
	}, &doublerModule{})

	run, err := testApp.Execute(ctx)
	require.NoError(t, err)

	assert.Equal(t, record.RunSuccessful, run.Status)
	assert.Equal(t, "doubling", run.Pipeline)
	assert.Equal(t, []string{"double", "seed"}, run.Executed())

	key, ok := testApp.LookupCacheKey("seed", run)
	assert.True(t, ok)
	assert.NotEmpty(t, key)

	// The same app executes again; everything resolves from cache.
	second, err := testApp.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, record.RunSuccessful, second.Status)
	assert.Equal(t, []string{"double", "seed"}, second.Reused())
	assert.Empty(t, second.Executed())
}

func TestExecuteNoCache(t *testing.T) {
	ctx := context.Background()
	testApp, _ := SetupAppTest(t, Config{
		PipelinePath: writePipeline(t, doublerPipeline),
		NoCache:      true,
	}, &doublerModule{})

	_, err := testApp.Execute(ctx)
	require.NoError(t, err)

	second, err := testApp.Execute(ctx)
	require.NoError(t, err)
	assert.Empty(t, second.Reused(), "disabled caching must execute every step")
	assert.Equal(t, []string{"double", "seed"}, second.Executed())
}

func TestExecuteCompileError(t *testing.T) {
	ctx := context.Background()
	testApp, _ := SetupAppTest(t, Config{
		PipelinePath: writePipeline(t, `
pipeline "broken" {}

step "a" {
  handler = "seed"
  input "n" { value = step.missing.value }
}
`),
	}, &doublerModule{})

	_, err := testApp.Execute(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "compiling pipeline")
}

func TestNewConfig(t *testing.T) {
	t.Run("requires pipeline path", func(t *testing.T) {
		_, err := NewConfig(Config{})
		assert.Error(t, err)
	})

	t.Run("defaults worker count", func(t *testing.T) {
		cfg, err := NewConfig(Config{PipelinePath: "p.hcl"})
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.WorkerCount)
	})

	t.Run("defaults log level and format", func(t *testing.T) {
		cfg, err := NewConfig(Config{PipelinePath: "p.hcl"})
		require.NoError(t, err)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "text", cfg.LogFormat)
	})

	t.Run("rejects unknown log level", func(t *testing.T) {
		_, err := NewConfig(Config{PipelinePath: "p.hcl", LogLevel: "verbose"})
		assert.ErrorContains(t, err, "unknown log level")
	})

	t.Run("rejects unknown log format", func(t *testing.T) {
		_, err := NewConfig(Config{PipelinePath: "p.hcl", LogFormat: "xml"})
		assert.ErrorContains(t, err, "unknown log format")
	})
}

func TestCoreModulesRegister(t *testing.T) {
	testApp, _ := SetupAppTest(t, Config{
		PipelinePath: writePipeline(t, `pipeline "empty" {}`),
	})

	for _, name := range []string{"env_vars", "http_request", "print"} {
		_, ok := testApp.Registry().Handler(name)
		assert.True(t, ok, "core handler %q must be registered", name)
	}
}
