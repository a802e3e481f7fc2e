// Package materialize maps declared type tags to the serialization
// strategies used when persisting and reading step outputs. The mapping is
// an explicit capability table with a default tag; there is no runtime type
// introspection.
package materialize
