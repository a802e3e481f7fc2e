package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore persists artifacts as files under a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates a filesystem-backed store rooted at the given
// directory, creating it if necessary.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Write implements Store.
func (s *LocalStore) Write(ctx context.Context, locator string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := filepath.Join(s.root, filepath.FromSlash(locator))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	// Write to a temp file and rename so a partially written artifact
	// never becomes visible under its final locator.
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing artifact %q: %w", locator, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		return fmt.Errorf("publishing artifact %q: %w", locator, err)
	}
	return nil
}

// Read implements Store.
func (s *LocalStore) Read(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(locator)))
	if err != nil {
		return nil, fmt.Errorf("reading artifact %q: %w", locator, err)
	}
	return data, nil
}

// Exists implements Store.
func (s *LocalStore) Exists(ctx context.Context, locator string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(locator)))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking artifact %q: %w", locator, err)
	}
	return true, nil
}
