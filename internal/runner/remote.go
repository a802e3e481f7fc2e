package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"resty.dev/v3"

	"github.com/specialistvlad/pipeforge/internal/ctxlog"
	"github.com/specialistvlad/pipeforge/internal/model"
)

// Remote dispatches steps to a runner service over HTTP. The service hosts
// the handlers; this client only moves values and signals.
type Remote struct {
	client *resty.Client
}

// NewRemote creates a runner client for the service at baseURL.
func NewRemote(baseURL string) *Remote {
	return &Remote{client: resty.New().SetBaseURL(baseURL)}
}

// executeRequest is the wire form of one step dispatch. Values travel as
// cty JSON documents.
type executeRequest struct {
	StepID  string                     `json:"step_id"`
	Handler string                     `json:"handler"`
	Params  map[string]json.RawMessage `json:"params"`
	Inputs  map[string]json.RawMessage `json:"inputs"`
}

type executeResponse struct {
	Outputs map[string]json.RawMessage `json:"outputs"`
	Error   string                     `json:"error"`
}

type statusResponse struct {
	State string `json:"state"`
}

// Execute implements Runner.
func (r *Remote) Execute(ctx context.Context, spec *model.StepSpec, inputs map[string]cty.Value) (Outputs, error) {
	logger := ctxlog.FromContext(ctx).With("step", spec.ID)

	params, err := encodeValues(spec.Params)
	if err != nil {
		return nil, fmt.Errorf("encoding params for step %q: %w", spec.ID, err)
	}
	encodedInputs, err := encodeValues(inputs)
	if err != nil {
		return nil, fmt.Errorf("encoding inputs for step %q: %w", spec.ID, err)
	}

	var result executeResponse
	logger.Debug("Dispatching step to remote runner.")
	res, err := r.client.R().
		SetContext(ctx).
		SetBody(&executeRequest{
			StepID:  spec.ID,
			Handler: spec.Handler,
			Params:  params,
			Inputs:  encodedInputs,
		}).
		SetResult(&result).
		Post("/v1/steps")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: runner returned %s", ErrBackendUnavailable, res.Status())
	}
	if result.Error != "" {
		return nil, fmt.Errorf("step %q failed remotely: %s", spec.ID, result.Error)
	}

	outputs := make(Outputs, len(result.Outputs))
	for name, raw := range result.Outputs {
		val, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding output %q of step %q: %w", name, spec.ID, err)
		}
		outputs[name] = val
	}
	return outputs, nil
}

// Cancel implements Runner. Cancellation is best effort; delivery failures
// are ignored because the run is already unwinding.
func (r *Remote) Cancel(stepID string) {
	_, _ = r.client.R().Post("/v1/steps/" + stepID + "/cancel")
}

// Status implements Runner by polling the service.
func (r *Remote) Status() State {
	var status statusResponse
	res, err := r.client.R().SetResult(&status).Get("/v1/status")
	if err != nil || res.IsError() {
		return StateFailed
	}
	switch State(status.State) {
	case StateStopped, StateStarting, StateRunning, StateFailed, StateStoppedByRequest:
		return State(status.State)
	}
	return StateFailed
}

// Close releases the underlying HTTP client.
func (r *Remote) Close() error {
	return r.client.Close()
}

func encodeValues(values map[string]cty.Value) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(values))
	for name, val := range values {
		raw, err := ctyjson.Marshal(val, val.Type())
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", name, err)
		}
		out[name] = raw
	}
	return out, nil
}

func decodeValue(raw json.RawMessage) (cty.Value, error) {
	ty, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return cty.NilVal, err
	}
	return ctyjson.Unmarshal(raw, ty)
}
