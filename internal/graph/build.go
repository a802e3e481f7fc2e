package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/pipeforge/internal/ctxlog"
	"github.com/specialistvlad/pipeforge/internal/model"
	"github.com/specialistvlad/pipeforge/internal/settings"
)

// Build compiles a pipeline's invocations into a frozen, validated
// execution graph. active lists the settings categories with a configured
// backend component; everything else is kept non-binding.
func Build(ctx context.Context, pipeline *model.Pipeline, active map[string]bool) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.", "pipeline", pipeline.Name)

	graph := &Graph{
		Pipeline: pipeline.Name,
		Cache:    pipeline.Cache,
		Nodes:    make(map[string]*Node),
	}

	// First pass: create one node per invocation, merging settings.
	if err := createNodes(ctx, pipeline, graph, active); err != nil {
		return nil, err
	}
	logger.Debug("Build: Node creation complete.", "node_count", len(graph.Nodes))

	// Second pass: link data and order-only edges.
	if err := linkNodes(ctx, pipeline, graph); err != nil {
		return nil, err
	}
	logger.Debug("Build: Node linking complete.", "edge_count", len(graph.Edges))

	if err := graph.detectCycles(); err != nil {
		return nil, err
	}
	logger.Debug("Build: Cycle detection passed.")

	graph.order = graph.topoSort()
	logger.Debug("Build: Graph construction successful.", "order", graph.order)
	return graph, nil
}

// createNodes performs the first pass of graph creation.
func createNodes(ctx context.Context, pipeline *model.Pipeline, graph *Graph, active map[string]bool) error {
	for _, inv := range pipeline.Invocations {
		if _, exists := graph.Nodes[inv.ID]; exists {
			return &DuplicateStepIDError{ID: inv.ID}
		}

		merged, err := settings.Merge(ctx, pipeline.Settings, inv.Settings, active)
		if err != nil {
			return fmt.Errorf("step %q: %w", inv.ID, err)
		}

		graph.Nodes[inv.ID] = &Node{
			Spec: &model.StepSpec{
				ID:            inv.ID,
				Handler:       inv.Handler,
				Params:        inv.Params,
				Inputs:        inv.Inputs,
				Outputs:       inv.Outputs,
				After:         inv.After,
				Settings:      merged.Values,
				NonBinding:    merged.NonBinding,
				CacheSettings: inv.CacheSettings,
				Cache:         inv.Cache,
			},
			Deps:       make(map[string]*Node),
			Dependents: make(map[string]*Node),
		}
	}
	return nil
}

// linkNodes performs the second pass, establishing dependency links.
func linkNodes(ctx context.Context, pipeline *model.Pipeline, graph *Graph) error {
	logger := ctxlog.FromContext(ctx)

	for _, inv := range pipeline.Invocations {
		node := graph.Nodes[inv.ID]

		// Data edges come from input port bindings.
		for _, input := range sortedKeys(inv.Inputs) {
			ref := inv.Inputs[input]
			if !ref.IsData() {
				continue
			}
			producer, found := graph.Nodes[ref.StepID]
			if !found {
				return &UnresolvedReferenceError{StepID: inv.ID, Ref: ref.StepID}
			}
			if !producer.Spec.HasOutput(ref.Output) {
				return &UnresolvedReferenceError{
					StepID: inv.ID,
					Ref:    fmt.Sprintf("%s.%s", ref.StepID, ref.Output),
				}
			}
			logger.Debug("Linking data edge.", "from", ref.StepID, "to", inv.ID, "input", input)
			link(producer, node)
			graph.Edges = append(graph.Edges, Edge{
				From:   ref.StepID,
				To:     inv.ID,
				Output: ref.Output,
				Input:  input,
				Kind:   DataEdge,
			})
		}

		// Order-only edges come from explicit run-after references.
		for _, after := range inv.After {
			producer, found := graph.Nodes[after]
			if !found {
				return &UnresolvedReferenceError{StepID: inv.ID, Ref: after}
			}
			logger.Debug("Linking order-only edge.", "from", after, "to", inv.ID)
			link(producer, node)
			graph.Edges = append(graph.Edges, Edge{
				From: after,
				To:   inv.ID,
				Kind: OrderEdge,
			})
		}
	}
	return nil
}

// link records a producer-before-consumer dependency between two nodes.
func link(producer, consumer *Node) {
	consumer.Deps[producer.Spec.ID] = producer
	producer.Dependents[consumer.Spec.ID] = consumer
}

// detectCycles checks for circular dependencies using depth-first search.
// On failure it reports the full ordered cycle path.
func (g *Graph) detectCycles() error {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	var stack []string

	var visit func(node *Node) *CycleError
	visit = func(node *Node) *CycleError {
		id := node.Spec.ID
		visiting[id] = true
		stack = append(stack, id)

		for _, depID := range sortedKeys(node.Deps) {
			dep := node.Deps[depID]
			if visiting[depID] {
				// Slice the traversal stack from the first occurrence
				// of the repeated node to close the loop.
				start := 0
				for i, sid := range stack {
					if sid == depID {
						start = i
						break
					}
				}
				path := append(append([]string{}, stack[start:]...), depID)
				return &CycleError{Path: path}
			}
			if !visited[depID] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		delete(visiting, id)
		visited[id] = true
		return nil
	}

	for _, id := range sortedKeys(g.Nodes) {
		if !visited[id] {
			if err := visit(g.Nodes[id]); err != nil {
				return err
			}
		}
	}
	return nil
}

// topoSort computes a deterministic topological order using Kahn's
// algorithm with a sorted frontier. Must only be called on an acyclic
// graph.
func (g *Graph) topoSort() []string {
	inDegree := make(map[string]int, len(g.Nodes))
	for id, node := range g.Nodes {
		inDegree[id] = len(node.Deps)
	}

	var frontier []string
	for id, deg := range inDegree {
		if deg == 0 {
			frontier = append(frontier, id)
		}
	}
	sort.Strings(frontier)

	order := make([]string, 0, len(g.Nodes))
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)

		var unlocked []string
		for _, depID := range sortedKeys(g.Nodes[id].Dependents) {
			inDegree[depID]--
			if inDegree[depID] == 0 {
				unlocked = append(unlocked, depID)
			}
		}
		frontier = append(frontier, unlocked...)
		sort.Strings(frontier)
	}
	return order
}

// sortedKeys returns the keys of a map in sorted order, keeping graph
// construction and traversal deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
