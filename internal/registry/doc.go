// Package registry holds the step handlers available to the local backend
// runner, keyed by handler name. It also serves as the code-hashing
// collaborator for the fingerprint engine.
package registry
