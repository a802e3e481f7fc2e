// Package scheduler drives a compiled, cache-resolved graph to completion.
// A single scheduling authority feeds ready steps to a bounded worker pool;
// misses go to the backend runner, hits are reused from the artifact store,
// and a failed step aborts its descendants without stopping independent
// branches.
package scheduler
