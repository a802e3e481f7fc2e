package model

import "github.com/zclconf/go-cty/cty"

// Settings holds structured configuration objects keyed by
// "category.flavor", e.g. "resources.docker". Values are cty object values
// so that pipeline-level and step-level settings can be merged field by
// field.
type Settings map[string]cty.Value

// Clone returns a shallow copy of the settings map. cty values are
// immutable, so a shallow copy is enough to keep the original frozen.
func (s Settings) Clone() Settings {
	if s == nil {
		return nil
	}
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Pipeline is a named collection of step invocations plus pipeline-level
// defaults. It is the input to compilation.
type Pipeline struct {
	// Name identifies the pipeline in run records.
	Name string
	// Settings holds pipeline-level settings inherited by every step.
	Settings Settings
	// Cache is the pipeline-level caching default. Nil means enabled.
	Cache *bool
	// Invocations lists the steps in declaration order.
	Invocations []*Invocation
}
