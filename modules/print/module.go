package print

import (
	"context"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/pipeforge/internal/ctxlog"
	"github.com/specialistvlad/pipeforge/internal/registry"
)

// sourceDigest is bumped whenever the handler logic changes, invalidating
// cached results of steps that use it.
const sourceDigest = "print/v1"

// Module contributes the 'print' handler.
type Module struct{}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHandler("print", onRun, sourceDigest)
}

// onRun logs every input value and reports how many were printed.
func onRun(ctx context.Context, params, inputs map[string]cty.Value) (map[string]cty.Value, error) {
	logger := ctxlog.FromContext(ctx)

	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		logger.Info("🖨️ " + fmt.Sprintf("%s = %s", name, formatValue(inputs[name])))
	}
	return map[string]cty.Value{
		"count": cty.NumberIntVal(int64(len(names))),
	}, nil
}

func formatValue(v cty.Value) string {
	if v.IsNull() {
		return "(null)"
	}
	switch v.Type() {
	case cty.String:
		return v.AsString()
	case cty.Number:
		return v.AsBigFloat().Text('f', -1)
	case cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	default:
		return v.GoString()
	}
}
