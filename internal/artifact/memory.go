package artifact

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and throwaway runs.
type MemoryStore struct {
	mutex sync.RWMutex
	data  map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Write implements Store.
func (s *MemoryStore) Write(ctx context.Context, locator string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.data[locator] = buf
	return nil
}

// Read implements Store.
func (s *MemoryStore) Read(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	data, ok := s.data[locator]
	if !ok {
		return nil, fmt.Errorf("reading artifact %q: not found", locator)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Exists implements Store.
func (s *MemoryStore) Exists(ctx context.Context, locator string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.data[locator]
	return ok, nil
}

// Delete removes an artifact, simulating external loss for tests.
func (s *MemoryStore) Delete(locator string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.data, locator)
}
