package hcl

import (
	"github.com/hashicorp/hcl/v2"
)

// paramsBlock represents the content of the 'params' block within a step.
type paramsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// settingsBlock represents the content of a 'settings' block. Its nested
// blocks are decoded dynamically because category and flavor names are
// user-defined.
type settingsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// inputBlock binds one input port of a step.
type inputBlock struct {
	Name  string         `hcl:"name,label"`
	Value hcl.Expression `hcl:"value"`
}

// outputBlock declares one output port of a step.
type outputBlock struct {
	Name string `hcl:"name,label"`
	Tag  string `hcl:"tag,optional"`
}

// stepBlock represents a `step` block from a user's pipeline file.
type stepBlock struct {
	ID            string         `hcl:"id,label"`
	Handler       string         `hcl:"handler"`
	Params        *paramsBlock   `hcl:"params,block"`
	Inputs        []*inputBlock  `hcl:"input,block"`
	Outputs       []*outputBlock `hcl:"output,block"`
	After         []string       `hcl:"after,optional"`
	Cache         *bool          `hcl:"cache,optional"`
	CacheSettings []string       `hcl:"cache_settings,optional"`
	Settings      *settingsBlock `hcl:"settings,block"`
}

// pipelineBlock represents the top-level `pipeline` block.
type pipelineBlock struct {
	Name     string         `hcl:"name,label"`
	Cache    *bool          `hcl:"cache,optional"`
	Settings *settingsBlock `hcl:"settings,block"`
}

// fileRoot decodes all recognized top-level blocks from any file.
type fileRoot struct {
	Pipelines []*pipelineBlock `hcl:"pipeline,block"`
	Steps     []*stepBlock     `hcl:"step,block"`
	Remain    hcl.Body         `hcl:",remain"`
}
