package artifact

import (
	"context"
	"path"
)

// Handle identifies a persisted step output. The bytes themselves stay in
// the store; the engine only ever passes handles around.
type Handle struct {
	// ID is a unique identifier for this artifact.
	ID string
	// Output is the producing step's output port name.
	Output string
	// Locator addresses the artifact inside the store.
	Locator string
	// Tag names the materializer used to save the artifact, so the same
	// strategy can load it back.
	Tag string
}

// Store persists and retrieves artifact bytes. Implementations must
// guarantee at most one writer per locator at a time; the engine keeps
// locators unique per run, so concurrent steps never share one.
type Store interface {
	// Write persists data under the given locator.
	Write(ctx context.Context, locator string, data []byte) error
	// Read returns the bytes stored under the locator.
	Read(ctx context.Context, locator string) ([]byte, error)
	// Exists reports whether the locator currently resolves to stored
	// bytes.
	Exists(ctx context.Context, locator string) (bool, error)
}

// Locator builds the canonical locator for a step output within a run:
// <step>/<output>/<run-id>.
func Locator(stepID, output, runID string) string {
	return path.Join(stepID, output, runID)
}
