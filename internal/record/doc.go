// Package record defines run records, the append-only attempt log of the
// engine, and the stores that persist them. The persisted history doubles
// as the cache index consulted during cache resolution: prior successful
// step runs are looked up by cache key.
package record
