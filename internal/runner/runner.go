package runner

import (
	"context"
	"errors"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/pipeforge/internal/model"
)

// State is the polled lifecycle status of a backend runner. The engine
// only ever observes this enum, never a live service handle.
type State string

const (
	StateStopped          State = "Stopped"
	StateStarting         State = "Starting"
	StateRunning          State = "Running"
	StateFailed           State = "Failed"
	StateStoppedByRequest State = "StoppedByRequest"
)

// ErrBackendUnavailable marks runner failures that are fatal to the whole
// run rather than to a single step. Steps already succeeded keep their
// artifacts.
var ErrBackendUnavailable = errors.New("backend runner unavailable")

// Outputs maps output port names to produced values.
type Outputs map[string]cty.Value

// Runner executes step logic somewhere: in-process, in a subprocess, in a
// container, or on a remote cluster. The engine only sees success, failure
// and output values.
type Runner interface {
	// Execute runs one step with its resolved input values and returns
	// one value per declared output port.
	Execute(ctx context.Context, spec *model.StepSpec, inputs map[string]cty.Value) (Outputs, error)
	// Cancel forwards a cancellation signal to a running step. It is
	// advisory; a step that already finished is unaffected.
	Cancel(stepID string)
	// Status reports the runner's current lifecycle state.
	Status() State
}
