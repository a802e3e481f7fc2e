// Package graph is the compilation layer of the engine. It takes a
// pipeline's step invocations, validates them, and produces a frozen
// Directed Acyclic Graph (DAG) of step specs linked by data and order-only
// edges, ready for cache resolution and scheduling.
package graph
