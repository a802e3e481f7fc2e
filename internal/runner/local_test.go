package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/pipeforge/internal/model"
	"github.com/specialistvlad/pipeforge/internal/registry"
)

func TestLocalExecute(t *testing.T) {
	ctx := context.Background()

	reg := registry.New()
	reg.RegisterHandler("double", func(_ context.Context, params, inputs map[string]cty.Value) (map[string]cty.Value, error) {
		n, _ := inputs["n"].AsBigFloat().Int64()
		return map[string]cty.Value{"out": cty.NumberIntVal(n * 2)}, nil
	}, "v1")

	spec := &model.StepSpec{
		ID:      "calc",
		Handler: "double",
		Outputs: []model.OutputDecl{{Name: "out"}},
	}

	t.Run("runs handler and returns outputs", func(t *testing.T) {
		local := NewLocal(reg)
		outputs, err := local.Execute(ctx, spec, map[string]cty.Value{"n": cty.NumberIntVal(21)})
		require.NoError(t, err)
		assert.Equal(t, cty.NumberIntVal(42), outputs["out"])
	})

	t.Run("unknown handler is a backend failure", func(t *testing.T) {
		local := NewLocal(reg)
		_, err := local.Execute(ctx, &model.StepSpec{ID: "x", Handler: "ghost"}, nil)
		assert.ErrorIs(t, err, ErrBackendUnavailable)
	})

	t.Run("missing declared output fails", func(t *testing.T) {
		reg := registry.New()
		reg.RegisterHandler("empty", func(context.Context, map[string]cty.Value, map[string]cty.Value) (map[string]cty.Value, error) {
			return nil, nil
		}, "v1")
		local := NewLocal(reg)
		_, err := local.Execute(ctx, &model.StepSpec{
			ID: "x", Handler: "empty", Outputs: []model.OutputDecl{{Name: "out"}},
		}, nil)
		assert.ErrorContains(t, err, "no value for declared output")
	})
}

func TestLocalCancel(t *testing.T) {
	reg := registry.New()
	started := make(chan struct{})
	reg.RegisterHandler("block", func(ctx context.Context, _, _ map[string]cty.Value) (map[string]cty.Value, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}, "v1")

	local := NewLocal(reg)
	errCh := make(chan error, 1)
	go func() {
		_, err := local.Execute(context.Background(), &model.StepSpec{ID: "slow", Handler: "block"}, nil)
		errCh <- err
	}()

	<-started
	local.Cancel("slow")

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not unblock the running step")
	}
}

func TestLocalStatus(t *testing.T) {
	local := NewLocal(registry.New())
	assert.Equal(t, StateRunning, local.Status())
	local.Stop()
	assert.Equal(t, StateStoppedByRequest, local.Status())
}

func TestRegistryHash(t *testing.T) {
	reg := registry.New()
	reg.RegisterHandler("a", nil, "v1")

	h1, err := reg.Hash(context.Background(), "a")
	require.NoError(t, err)
	h2, err := reg.Hash(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	reg.RegisterHandler("a", nil, "v2")
	h3, err := reg.Hash(context.Background(), "a")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3, "source digest change must change the code hash")

	_, err = reg.Hash(context.Background(), "missing")
	assert.Error(t, err)
}
