package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"
)

// HandlerFunc is the executable logic of a step. It receives the step's
// literal parameters and the values resolved from upstream outputs, and
// returns one value per declared output port.
type HandlerFunc func(ctx context.Context, params, inputs map[string]cty.Value) (map[string]cty.Value, error)

// RegisteredHandler pairs step logic with its code identity.
type RegisteredHandler struct {
	Fn HandlerFunc
	// SourceDigest identifies the handler's implementation. Modules bump
	// it whenever the logic changes, which invalidates cached results.
	SourceDigest string
}

// Module is the interface application modules implement to contribute
// handlers to a registry instance.
type Module interface {
	Register(r *Registry)
}

// Registry holds the step handlers of a single application instance. There
// is no process-global registry; every App owns its own.
type Registry struct {
	mutex    sync.RWMutex
	handlers map[string]*RegisteredHandler
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]*RegisteredHandler)}
}

// RegisterHandler binds step logic to a handler name.
func (r *Registry) RegisterHandler(name string, fn HandlerFunc, sourceDigest string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.handlers[name] = &RegisteredHandler{Fn: fn, SourceDigest: sourceDigest}
}

// Handler returns the registered handler for a name.
func (r *Registry) Handler(name string) (*RegisteredHandler, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Hash implements the engine's code hasher: the digest covers the handler
// name and its registered source digest.
func (r *Registry) Hash(_ context.Context, handler string) (string, error) {
	h, ok := r.Handler(handler)
	if !ok {
		return "", fmt.Errorf("handler %q not registered", handler)
	}
	sum := sha256.Sum256([]byte(handler + "\n" + h.SourceDigest))
	return hex.EncodeToString(sum[:]), nil
}
