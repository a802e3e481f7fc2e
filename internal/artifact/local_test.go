package artifact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocator(t *testing.T) {
	assert.Equal(t, "train/model/run-1", Locator("train", "model", "run-1"))
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		loc := Locator("train", "model", "run-1")
		require.NoError(t, store.Write(ctx, loc, []byte("weights")))

		ok, err := store.Exists(ctx, loc)
		require.NoError(t, err)
		assert.True(t, ok)

		data, err := store.Read(ctx, loc)
		require.NoError(t, err)
		assert.Equal(t, []byte("weights"), data)
	})

	t.Run("missing locator", func(t *testing.T) {
		ok, err := store.Exists(ctx, "no/such/thing")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = store.Read(ctx, "no/such/thing")
		assert.Error(t, err)
	})
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	loc := Locator("a", "out", "run-1")
	require.NoError(t, store.Write(ctx, loc, []byte("v1")))

	data, err := store.Read(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)

	t.Run("delete simulates external loss", func(t *testing.T) {
		store.Delete(loc)
		ok, err := store.Exists(ctx, loc)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("reads are isolated from later writes", func(t *testing.T) {
		loc2 := Locator("b", "out", "run-1")
		payload := []byte("abc")
		require.NoError(t, store.Write(ctx, loc2, payload))
		payload[0] = 'x'

		data, err := store.Read(ctx, loc2)
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), data)
	})
}
