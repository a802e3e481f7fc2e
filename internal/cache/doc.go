// Package cache decides, per step of an upcoming run, whether a prior
// result can be reused instead of executing the step. Decisions combine
// the fingerprint engine's keys, the run history index, and artifact
// availability.
package cache
