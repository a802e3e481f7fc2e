package http_request

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"resty.dev/v3"

	"github.com/specialistvlad/pipeforge/internal/ctxlog"
	"github.com/specialistvlad/pipeforge/internal/registry"
)

const sourceDigest = "http_request/v1"

// Module contributes the 'http_request' handler for fetching data over HTTP
// inside a pipeline step.
type Module struct{}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHandler("http_request", onRun, sourceDigest)
}

// onRun performs a single HTTP request. The URL comes from the "url" param
// or input; "method" defaults to GET. Outputs are "status" and "body".
func onRun(ctx context.Context, params, inputs map[string]cty.Value) (map[string]cty.Value, error) {
	logger := ctxlog.FromContext(ctx)

	url, err := stringArg("url", params, inputs)
	if err != nil {
		return nil, err
	}
	method := "GET"
	if m, ok := params["method"]; ok && m.Type() == cty.String && !m.IsNull() {
		method = m.AsString()
	}

	client := resty.New()
	defer client.Close()

	logger.Debug("Issuing HTTP request.", "method", method, "url", url)
	resp, err := client.R().SetContext(ctx).Execute(method, url)
	if err != nil {
		return nil, fmt.Errorf("http request to %q: %w", url, err)
	}

	return map[string]cty.Value{
		"status": cty.NumberIntVal(int64(resp.StatusCode())),
		"body":   cty.StringVal(resp.String()),
	}, nil
}

// stringArg resolves a required string from params first, then inputs.
func stringArg(name string, params, inputs map[string]cty.Value) (string, error) {
	for _, src := range []map[string]cty.Value{params, inputs} {
		if v, ok := src[name]; ok && v.Type() == cty.String && !v.IsNull() {
			return v.AsString(), nil
		}
	}
	return "", fmt.Errorf("missing required string argument %q", name)
}
