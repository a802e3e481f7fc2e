// Package artifact defines the byte storage collaborator consumed by the
// engine, along with filesystem, in-memory and Redis-backed
// implementations. Artifacts are always referenced by handle and locator,
// never by inline value.
package artifact
