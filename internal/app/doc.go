// Package app wires the engine together. It defines the App struct that
// owns the registry, the stores, the runner and the materializers, plus the
// configuration and execution lifecycle, decoupled from any specific
// entrypoint like a CLI or server.
package app
