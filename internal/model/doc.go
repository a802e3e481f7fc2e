// Package model defines the format-agnostic representation of a pipeline:
// step invocations as written by the user, and the frozen step specs that
// come out of compilation.
//
// The model is the single source of truth for the `graph`, `fingerprint`
// and `scheduler` packages. Concrete loaders, such as the HCL one, live in
// separate packages and translate into this model.
package model
