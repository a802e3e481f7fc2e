package graph

import "github.com/specialistvlad/pipeforge/internal/model"

// EdgeKind distinguishes the two kinds of dependency edges.
type EdgeKind int

const (
	// DataEdge carries a value from a producer's output port to a
	// consumer's input port, and orders producer before consumer.
	DataEdge EdgeKind = iota
	// OrderEdge orders producer before consumer without transferring
	// data.
	OrderEdge
)

// String returns a human-readable edge kind for logs and errors.
func (k EdgeKind) String() string {
	if k == DataEdge {
		return "data"
	}
	return "order-only"
}

// Edge is a directed link between two steps.
type Edge struct {
	// From and To are step ids; From must complete before To starts.
	From string
	To   string
	// Output and Input name the ports a data edge connects. Empty for
	// order-only edges.
	Output string
	Input  string
	Kind   EdgeKind
}

// Node is a single step inside a frozen execution graph.
type Node struct {
	// Spec is the compiled, immutable step spec.
	Spec *model.StepSpec
	// Deps holds the set of nodes this node depends on (predecessors).
	Deps map[string]*Node
	// Dependents holds the set of nodes that depend on this node
	// (successors).
	Dependents map[string]*Node
}

// Graph is a frozen, validated execution graph. It is immutable after
// Build returns it; all mutation happens inside compilation.
type Graph struct {
	// Pipeline is the name of the pipeline the graph was compiled from.
	Pipeline string
	// Cache is the pipeline-level caching default carried into cache
	// resolution. Nil means enabled.
	Cache *bool
	// Nodes stores all steps, keyed by step id.
	Nodes map[string]*Node
	// Edges lists every dependency edge in the graph.
	Edges []Edge

	order []string
}

// TopoOrder returns the step ids in a deterministic topological order that
// respects every data and order-only edge.
func (g *Graph) TopoOrder() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// DataEdgesInto returns the data edges feeding the given step, in a
// deterministic order.
func (g *Graph) DataEdgesInto(stepID string) []Edge {
	var in []Edge
	for _, e := range g.Edges {
		if e.To == stepID && e.Kind == DataEdge {
			in = append(in, e)
		}
	}
	return in
}

// Node returns the node for the given step id, or nil if absent.
func (g *Graph) Node(stepID string) *Node {
	return g.Nodes[stepID]
}
