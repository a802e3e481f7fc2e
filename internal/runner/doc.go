// Package runner defines the backend execution collaborator: the interface
// the scheduler dispatches steps through, an in-process implementation
// backed by the handler registry, and an HTTP client for a remote runner
// service. Runner lifecycle is exposed only as a polled state enum.
package runner
