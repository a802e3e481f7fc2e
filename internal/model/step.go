package model

import "github.com/zclconf/go-cty/cty"

// InputRef binds one input port of a step. It is either a data reference to
// an upstream step's output port, or a literal parameter value.
type InputRef struct {
	// StepID names the producing step for a data reference. Empty for
	// literal bindings.
	StepID string
	// Output is the producing step's output port name.
	Output string
	// Literal holds the bound value when the reference is not a data
	// reference.
	Literal cty.Value
}

// IsData reports whether the reference carries a value from another step.
func (r InputRef) IsData() bool {
	return r.StepID != ""
}

// DataRef builds an input reference to the named output of another step.
func DataRef(stepID, output string) InputRef {
	return InputRef{StepID: stepID, Output: output}
}

// LiteralRef builds an input reference bound to a literal value.
func LiteralRef(v cty.Value) InputRef {
	return InputRef{Literal: v}
}

// OutputDecl declares a single output port of a step.
type OutputDecl struct {
	// Name is the port name, unique within the step.
	Name string
	// Tag selects the materializer used to persist the port's value. An
	// empty tag selects the registry default.
	Tag string
}

// Invocation describes a single step as written by the user, before
// compilation. Compilation turns a set of invocations into frozen StepSpecs
// linked by edges.
type Invocation struct {
	// ID uniquely identifies the step within its pipeline.
	ID string
	// Handler names the registered step logic executed by the backend
	// runner. It is also the unit the code hasher fingerprints.
	Handler string
	// Params holds the literal parameter values of the step.
	Params map[string]cty.Value
	// Inputs binds each declared input port.
	Inputs map[string]InputRef
	// Outputs declares the step's output ports.
	Outputs []OutputDecl
	// After lists step ids this step must run after, without consuming
	// their outputs.
	After []string
	// Settings holds step-level settings, keyed by "category.flavor".
	Settings Settings
	// CacheSettings lists the settings categories whose values take part
	// in the step's cache key.
	CacheSettings []string
	// Cache overrides caching for this step. Nil inherits the pipeline
	// default.
	Cache *bool
}

// StepSpec is the frozen, compiled form of an invocation. It is immutable
// once the graph it belongs to is built.
type StepSpec struct {
	ID            string
	Handler       string
	Params        map[string]cty.Value
	Inputs        map[string]InputRef
	Outputs       []OutputDecl
	After         []string
	Settings      Settings
	NonBinding    map[string]bool
	CacheSettings []string
	Cache         *bool
}

// OutputNames returns the declared output port names in declaration order.
func (s *StepSpec) OutputNames() []string {
	names := make([]string, len(s.Outputs))
	for i, out := range s.Outputs {
		names[i] = out.Name
	}
	return names
}

// HasOutput reports whether the step declares the named output port.
func (s *StepSpec) HasOutput(name string) bool {
	for _, out := range s.Outputs {
		if out.Name == name {
			return true
		}
	}
	return false
}
