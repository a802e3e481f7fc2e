package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("positional pipeline path", func(t *testing.T) {
		out := &bytes.Buffer{}
		cfg, exit, err := Parse([]string{"pipelines/demo.hcl"}, out)
		require.NoError(t, err)
		assert.False(t, exit)
		assert.Equal(t, "pipelines/demo.hcl", cfg.PipelinePath)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, 4, cfg.WorkerCount)
	})

	t.Run("flag beats positional", func(t *testing.T) {
		out := &bytes.Buffer{}
		cfg, _, err := Parse([]string{"-pipeline", "a.hcl", "b.hcl"}, out)
		require.NoError(t, err)
		assert.Equal(t, "a.hcl", cfg.PipelinePath)
	})

	t.Run("store and runner flags", func(t *testing.T) {
		out := &bytes.Buffer{}
		cfg, _, err := Parse([]string{
			"-state", "runs.db",
			"-artifacts", "/tmp/artifacts",
			"-runner-url", "http://runner:8080",
			"-no-cache",
			"p.hcl",
		}, out)
		require.NoError(t, err)
		assert.Equal(t, "runs.db", cfg.StatePath)
		assert.Equal(t, "/tmp/artifacts", cfg.ArtifactRoot)
		assert.Equal(t, "http://runner:8080", cfg.RunnerURL)
		assert.True(t, cfg.NoCache)
	})

	t.Run("no path prints usage and exits cleanly", func(t *testing.T) {
		out := &bytes.Buffer{}
		cfg, exit, err := Parse(nil, out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	})

	t.Run("invalid log format", func(t *testing.T) {
		out := &bytes.Buffer{}
		_, _, err := Parse([]string{"-log-format", "xml", "p.hcl"}, out)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
	})

	t.Run("invalid log level", func(t *testing.T) {
		out := &bytes.Buffer{}
		_, _, err := Parse([]string{"-log-level", "verbose", "p.hcl"}, out)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Contains(t, exitErr.Message, "invalid log-level")
	})

	t.Run("redis and artifacts are exclusive", func(t *testing.T) {
		out := &bytes.Buffer{}
		_, _, err := Parse([]string{"-redis", "localhost:6379", "-artifacts", "/tmp/a", "p.hcl"}, out)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Contains(t, exitErr.Message, "at most one")
	})

	t.Run("unknown flag", func(t *testing.T) {
		out := &bytes.Buffer{}
		_, _, err := Parse([]string{"--bogus"}, out)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
	})
}
