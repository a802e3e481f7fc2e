package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/pipeforge/internal/model"
)

// translatePipeline converts the decoded HCL blocks into the agnostic model.
func translatePipeline(p *pipelineBlock, steps []*stepBlock) (*model.Pipeline, error) {
	settings, err := decodeSettings(p.Settings)
	if err != nil {
		return nil, fmt.Errorf("in pipeline %q: %w", p.Name, err)
	}

	pipeline := &model.Pipeline{
		Name:     p.Name,
		Cache:    p.Cache,
		Settings: settings,
	}
	for _, s := range steps {
		inv, err := translateStep(s)
		if err != nil {
			return nil, err
		}
		pipeline.Invocations = append(pipeline.Invocations, inv)
	}
	return pipeline, nil
}

func translateStep(s *stepBlock) (*model.Invocation, error) {
	params, err := decodeParams(s.Params)
	if err != nil {
		return nil, fmt.Errorf("in step %q: %w", s.ID, err)
	}
	settings, err := decodeSettings(s.Settings)
	if err != nil {
		return nil, fmt.Errorf("in step %q: %w", s.ID, err)
	}

	inv := &model.Invocation{
		ID:            s.ID,
		Handler:       s.Handler,
		Params:        params,
		After:         s.After,
		Cache:         s.Cache,
		CacheSettings: s.CacheSettings,
		Settings:      settings,
	}

	if len(s.Inputs) > 0 {
		inv.Inputs = make(map[string]model.InputRef, len(s.Inputs))
		for _, in := range s.Inputs {
			if _, dup := inv.Inputs[in.Name]; dup {
				return nil, fmt.Errorf("in step %q: duplicate input %q", s.ID, in.Name)
			}
			ref, err := translateInput(in.Value)
			if err != nil {
				return nil, fmt.Errorf("in step %q, input %q: %w", s.ID, in.Name, err)
			}
			inv.Inputs[in.Name] = ref
		}
	}
	for _, out := range s.Outputs {
		inv.Outputs = append(inv.Outputs, model.OutputDecl{Name: out.Name, Tag: out.Tag})
	}
	return inv, nil
}

// translateInput classifies an input expression: a step.<id>.<output>
// traversal becomes a data reference, anything else must be a constant.
func translateInput(expr hcl.Expression) (model.InputRef, error) {
	if traversal, diags := hcl.AbsTraversalForExpr(expr); !diags.HasErrors() {
		stepID, output, ok := parseStepTraversal(traversal)
		if !ok {
			return model.InputRef{}, fmt.Errorf("unsupported reference %q; expected step.<id>.<output>", traversal.RootName())
		}
		return model.DataRef(stepID, output), nil
	}

	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return model.InputRef{}, fmt.Errorf("value must be a constant or a step reference: %w", diags)
	}
	return model.LiteralRef(val), nil
}

// parseStepTraversal analyzes an HCL traversal to extract a step output
// reference of the exact form step.<id>.<output>.
func parseStepTraversal(traversal hcl.Traversal) (stepID, output string, ok bool) {
	if len(traversal) != 3 || traversal.RootName() != "step" {
		return "", "", false
	}
	idAttr, idOk := traversal[1].(hcl.TraverseAttr)
	outAttr, outOk := traversal[2].(hcl.TraverseAttr)
	if !idOk || !outOk {
		return "", "", false
	}
	return idAttr.Name, outAttr.Name, true
}

// decodeParams evaluates the attributes of a params block as constants.
func decodeParams(block *paramsBlock) (map[string]cty.Value, error) {
	if block == nil || block.Body == nil {
		return nil, nil
	}
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid params block: %w", diags)
	}
	if len(attrs) == 0 {
		return nil, nil
	}
	params := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("param %q must be a constant: %w", name, diags)
		}
		params[name] = val
	}
	return params, nil
}

// decodeSettings reads the nested category blocks of a settings block. A
// block `resources "docker" { ... }` yields the key "resources.docker"; an
// unlabeled block yields its type as the key. Attribute values are collected
// into one object value per key.
func decodeSettings(block *settingsBlock) (model.Settings, error) {
	if block == nil || block.Body == nil {
		return nil, nil
	}
	body, ok := block.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("settings block requires native HCL syntax")
	}
	if len(body.Blocks) == 0 {
		return nil, nil
	}

	settings := make(model.Settings, len(body.Blocks))
	for _, category := range body.Blocks {
		key := category.Type
		if len(category.Labels) > 0 {
			key = category.Type + "." + category.Labels[0]
		}
		if _, dup := settings[key]; dup {
			return nil, fmt.Errorf("duplicate settings block %q", key)
		}
		fields := make(map[string]cty.Value, len(category.Body.Attributes))
		for name, attr := range category.Body.Attributes {
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("settings %q, attribute %q must be a constant: %w", key, name, diags)
			}
			fields[name] = val
		}
		settings[key] = cty.ObjectVal(fields)
	}
	return settings, nil
}
