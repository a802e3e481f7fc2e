package integration_tests

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/pipeforge/internal/app"
	"github.com/specialistvlad/pipeforge/internal/record"
	"github.com/specialistvlad/pipeforge/internal/registry"
)

// spyModule is a self-contained module for this specific test: "source"
// emits a fixed value, "spy" captures whatever arrives on its input.
type spyModule struct {
	mu            sync.Mutex
	sourceOutput  cty.Value
	capturedInput cty.Value
}

func (m *spyModule) Register(r *registry.Registry) {
	r.RegisterHandler("source", func(context.Context, map[string]cty.Value, map[string]cty.Value) (map[string]cty.Value, error) {
		return map[string]cty.Value{"data": m.sourceOutput}, nil
	}, "source/v1")

	r.RegisterHandler("spy", func(_ context.Context, _, inputs map[string]cty.Value) (map[string]cty.Value, error) {
		m.mu.Lock()
		m.capturedInput = inputs["input"]
		m.mu.Unlock()
		return map[string]cty.Value{"done": cty.True}, nil
	}, "spy/v1")
}

func (m *spyModule) captured() cty.Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturedInput
}

// Test for: complex data (objects, lists) passes correctly between steps.
func TestCoreExecution_ComplexDataPassing(t *testing.T) {
	tempDir := t.TempDir()
	pipelineHCL := `
pipeline "data_passing" {}

step "source" {
  handler = "source"
  output "data" {}
}

step "spy" {
  handler = "spy"
  input "input" { value = step.source.data }
  output "done" {}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "main.hcl"), []byte(pipelineHCL), 0o600))

	payload := cty.ObjectVal(map[string]cty.Value{
		"name":   cty.StringVal("resnet"),
		"scores": cty.ListVal([]cty.Value{cty.NumberIntVal(1), cty.NumberIntVal(2)}),
		"nested": cty.ObjectVal(map[string]cty.Value{
			"enabled": cty.True,
		}),
	})
	module := &spyModule{sourceOutput: payload}

	testApp, _ := app.SetupAppTest(t, app.Config{PipelinePath: tempDir}, module)

	run, err := testApp.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, record.RunSuccessful, run.Status)

	assert.True(t, payload.RawEquals(module.captured()),
		"spy should receive exactly the source's value, got %s", module.captured().GoString())
}
