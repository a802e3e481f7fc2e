package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/pipeforge/internal/ctxlog"
	"github.com/specialistvlad/pipeforge/internal/model"
	"github.com/specialistvlad/pipeforge/internal/registry"
)

// Local executes steps in-process using handlers from a registry.
type Local struct {
	registry *registry.Registry

	mutex   sync.Mutex
	state   State
	cancels map[string]context.CancelFunc
}

// NewLocal creates an in-process runner backed by the given registry.
func NewLocal(reg *registry.Registry) *Local {
	return &Local{
		registry: reg,
		state:    StateRunning,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Execute implements Runner.
func (l *Local) Execute(ctx context.Context, spec *model.StepSpec, inputs map[string]cty.Value) (Outputs, error) {
	logger := ctxlog.FromContext(ctx).With("step", spec.ID)

	handler, ok := l.registry.Handler(spec.Handler)
	if !ok {
		return nil, fmt.Errorf("%w: handler %q not registered", ErrBackendUnavailable, spec.Handler)
	}

	stepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	l.track(spec.ID, cancel)
	defer l.untrack(spec.ID)

	logger.Debug("Invoking step handler.", "handler", spec.Handler)
	outputs, err := handler.Fn(stepCtx, spec.Params, inputs)
	if err != nil {
		return nil, err
	}

	for _, output := range spec.OutputNames() {
		if _, ok := outputs[output]; !ok {
			return nil, fmt.Errorf("handler %q produced no value for declared output %q", spec.Handler, output)
		}
	}
	return outputs, nil
}

// Cancel implements Runner.
func (l *Local) Cancel(stepID string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if cancel, ok := l.cancels[stepID]; ok {
		cancel()
	}
}

// Status implements Runner.
func (l *Local) Status() State {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.state
}

// Stop marks the runner stopped by request; subsequent status polls report
// it.
func (l *Local) Stop() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.state = StateStoppedByRequest
}

func (l *Local) track(stepID string, cancel context.CancelFunc) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.cancels[stepID] = cancel
}

func (l *Local) untrack(stepID string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	delete(l.cancels, stepID)
}
