package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// PipelinePath points at an .hcl file or a directory of them.
	PipelinePath string

	// StatePath is the SQLite database holding run records and the cache
	// index. Empty selects an in-memory store that forgets everything on
	// exit.
	StatePath string

	// ArtifactRoot is the directory of the local artifact store. Empty
	// selects an in-memory store unless RedisAddr is set.
	ArtifactRoot string

	// RedisAddr selects a Redis-backed artifact store when non-empty.
	RedisAddr string

	// RunnerURL selects a remote backend runner when non-empty; otherwise
	// steps execute in-process.
	RunnerURL string

	// NoCache forces every step to execute regardless of prior runs.
	NoCache bool

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, ok := logLevels[cfg.LogLevel]; !ok {
		return nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
	return &cfg, nil
}
