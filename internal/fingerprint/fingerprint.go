package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/pipeforge/internal/ctxlog"
	"github.com/specialistvlad/pipeforge/internal/graph"
)

// CodeHasher is the external collaborator that digests a step's executable
// logic. The engine never inspects step code itself.
type CodeHasher interface {
	Hash(ctx context.Context, handler string) (string, error)
}

// Key is the cache identity of one step execution attempt. Two attempts
// with identical non-disabled keys are interchangeable for reuse purposes.
type Key struct {
	Digest string
	// Disabled marks attempts whose parameters or cache-relevant
	// settings had no canonical form. The digest of a disabled key is a
	// per-attempt nonce, so downstream keys change too.
	Disabled bool
}

// Engine computes cache keys for every step of a graph.
type Engine struct {
	hasher CodeHasher
}

// NewEngine creates a fingerprint engine backed by the given code hasher.
func NewEngine(hasher CodeHasher) *Engine {
	return &Engine{hasher: hasher}
}

// Keys computes one cache key per step, visiting the graph in topological
// order so every upstream key exists before it is embedded downstream.
//
// A key digests four components: the handler's code digest, the canonical
// serialization of literal parameters, the producing step's key for every
// incoming data edge, and the canonical serialization of the settings
// categories declared cache-relevant.
func (e *Engine) Keys(ctx context.Context, g *graph.Graph) (map[string]Key, error) {
	logger := ctxlog.FromContext(ctx)
	keys := make(map[string]Key, len(g.Nodes))

	for _, stepID := range g.TopoOrder() {
		node := g.Node(stepID)
		key, err := e.stepKey(ctx, g, node, keys)
		if err != nil {
			return nil, fmt.Errorf("fingerprinting step %q: %w", stepID, err)
		}
		if key.Disabled {
			logger.Warn("Step parameters have no canonical form, caching disabled for this step.", "step", stepID)
		}
		keys[stepID] = key
	}
	return keys, nil
}

func (e *Engine) stepKey(ctx context.Context, g *graph.Graph, node *graph.Node, upstream map[string]Key) (Key, error) {
	spec := node.Spec

	code, err := e.hasher.Hash(ctx, spec.Handler)
	if err != nil {
		return Key{}, fmt.Errorf("hashing handler %q: %w", spec.Handler, err)
	}

	literals := make(map[string]cty.Value, len(spec.Params))
	for name, val := range spec.Params {
		literals[name] = val
	}
	for name, ref := range spec.Inputs {
		if !ref.IsData() {
			literals[name] = ref.Literal
		}
	}
	params, err := encodeCanonical(literals)
	if noCanonical(err) {
		return disabledKey(), nil
	}
	if err != nil {
		return Key{}, err
	}

	relevant := make(map[string]cty.Value, len(spec.CacheSettings))
	for _, category := range spec.CacheSettings {
		if val, ok := spec.Settings[category]; ok {
			relevant[category] = val
		}
	}
	settings, err := encodeCanonical(relevant)
	if noCanonical(err) {
		return disabledKey(), nil
	}
	if err != nil {
		return Key{}, err
	}

	h := sha256.New()
	fmt.Fprintf(h, "code:%s\n", code)
	fmt.Fprintf(h, "params:%s\n", params)
	// Edges arrive sorted by construction; embed the producer's own key,
	// not the artifact content, so upstream changes ripple down the
	// whole chain.
	for _, edge := range g.DataEdgesInto(spec.ID) {
		fmt.Fprintf(h, "input:%s=%s.%s:%s\n", edge.Input, edge.From, edge.Output, upstream[edge.From].Digest)
	}
	fmt.Fprintf(h, "settings:%s\n", settings)

	return Key{Digest: hex.EncodeToString(h.Sum(nil))}, nil
}

// disabledKey returns a cache-disabled marker. Its digest is a per-attempt
// nonce so that downstream keys embedding it change on every attempt.
func disabledKey() Key {
	return Key{Digest: "disabled-" + uuid.NewString(), Disabled: true}
}

func noCanonical(err error) bool {
	var noForm *ErrNoCanonicalForm
	return errors.As(err, &noForm)
}
