package record

import "context"

// Store persists finalized run records and answers cache index queries.
// The history is append-only: finalized records are never updated.
type Store interface {
	// SaveRun appends a finalized run record to the history.
	SaveRun(ctx context.Context, run *RunRecord) error
	// FindCached returns the most recent successful step run recorded
	// with the given cache key, or nil if none exists. Attempts written
	// with caching disabled never match.
	FindCached(ctx context.Context, cacheKey string) (*StepRun, error)
	// ListRuns returns the recorded runs of a pipeline, oldest first.
	ListRuns(ctx context.Context, pipeline string) ([]*RunRecord, error)
	// FindStepRuns returns every recorded attempt of a step across all
	// runs, oldest first.
	FindStepRuns(ctx context.Context, stepID string) ([]*StepRun, error)
	// Close releases any underlying resources.
	Close() error
}
