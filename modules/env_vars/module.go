package env_vars

import (
	"context"
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/pipeforge/internal/registry"
)

const sourceDigest = "env_vars/v1"

// Module contributes the 'env_vars' handler, exposing the process
// environment as a step output.
type Module struct{}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHandler("env_vars", onRun, sourceDigest)
}

// onRun returns the process environment as a map value under "all". A
// "prefix" param narrows the result to matching variable names.
func onRun(ctx context.Context, params, inputs map[string]cty.Value) (map[string]cty.Value, error) {
	prefix := ""
	if p, ok := params["prefix"]; ok && p.Type() == cty.String && !p.IsNull() {
		prefix = p.AsString()
	}

	envMap := make(map[string]cty.Value)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) != 2 {
			continue
		}
		if prefix != "" && !strings.HasPrefix(pair[0], prefix) {
			continue
		}
		envMap[pair[0]] = cty.StringVal(pair[1])
	}

	all := cty.MapValEmpty(cty.String)
	if len(envMap) > 0 {
		all = cty.MapVal(envMap)
	}
	return map[string]cty.Value{"all": all}, nil
}
