package materialize

import (
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"
)

// SaveFunc serializes a value for persistence in the artifact store.
type SaveFunc func(v cty.Value) ([]byte, error)

// LoadFunc deserializes previously saved bytes back into a value.
type LoadFunc func(data []byte) (cty.Value, error)

// Materializer is one serialization strategy bound to a type tag.
type Materializer struct {
	Tag  string
	Save SaveFunc
	Load LoadFunc
}

// Registry is the capability table mapping declared type tags to
// materializers. Dispatch is by tag only; the engine never inspects the
// runtime type of a value.
type Registry struct {
	mutex      sync.RWMutex
	byTag      map[string]Materializer
	defaultTag string
}

// NewRegistry creates a registry pre-populated with the built-in
// materializers, with "json" as the default tag.
func NewRegistry() *Registry {
	r := &Registry{byTag: make(map[string]Materializer)}
	registerBuiltins(r)
	r.defaultTag = TagJSON
	return r
}

// Register adds a materializer for a new type tag. Registering an existing
// tag is an error; strategies are never silently replaced.
func (r *Registry) Register(tag string, save SaveFunc, load LoadFunc) error {
	if tag == "" {
		return fmt.Errorf("materializer tag must not be empty")
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, exists := r.byTag[tag]; exists {
		return fmt.Errorf("materializer tag %q already registered", tag)
	}
	r.byTag[tag] = Materializer{Tag: tag, Save: save, Load: load}
	return nil
}

// SetDefault changes the tag used when a step output declares none.
func (r *Registry) SetDefault(tag string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, exists := r.byTag[tag]; !exists {
		return fmt.Errorf("cannot default to unregistered materializer tag %q", tag)
	}
	r.defaultTag = tag
	return nil
}

// Default returns the current default tag.
func (r *Registry) Default() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.defaultTag
}

// Resolve returns the materializer for a tag. An empty tag resolves to the
// default.
func (r *Registry) Resolve(tag string) (Materializer, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if tag == "" {
		tag = r.defaultTag
	}
	m, ok := r.byTag[tag]
	if !ok {
		return Materializer{}, fmt.Errorf("no materializer registered for tag %q", tag)
	}
	return m, nil
}

// Save serializes a value using the materializer bound to the tag.
func (r *Registry) Save(tag string, v cty.Value) ([]byte, error) {
	m, err := r.Resolve(tag)
	if err != nil {
		return nil, err
	}
	return m.Save(v)
}

// Load deserializes bytes using the materializer bound to the tag.
func (r *Registry) Load(tag string, data []byte) (cty.Value, error) {
	m, err := r.Resolve(tag)
	if err != nil {
		return cty.NilVal, err
	}
	return m.Load(data)
}
