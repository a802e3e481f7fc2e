package record

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and throwaway runs.
type MemoryStore struct {
	mutex sync.RWMutex
	runs  []*RunRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveRun implements Store.
func (s *MemoryStore) SaveRun(ctx context.Context, run *RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

// FindCached implements Store. The latest matching attempt wins, matching
// the append order of the log.
func (s *MemoryStore) FindCached(ctx context.Context, cacheKey string) (*StepRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for i := len(s.runs) - 1; i >= 0; i-- {
		for _, step := range s.runs[i].Steps {
			if step.CacheDisabled {
				continue
			}
			if step.CacheKey == cacheKey && step.Status.Success() {
				return step, nil
			}
		}
	}
	return nil, nil
}

// ListRuns implements Store.
func (s *MemoryStore) ListRuns(ctx context.Context, pipeline string) ([]*RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var out []*RunRecord
	for _, run := range s.runs {
		if run.Pipeline == pipeline {
			out = append(out, run)
		}
	}
	return out, nil
}

// FindStepRuns implements Store.
func (s *MemoryStore) FindStepRuns(ctx context.Context, stepID string) ([]*StepRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var out []*StepRun
	for _, run := range s.runs {
		if step, ok := run.Steps[stepID]; ok {
			out = append(out, step)
		}
	}
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
