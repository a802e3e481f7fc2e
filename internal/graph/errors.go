package graph

import (
	"fmt"
	"strings"
)

// DuplicateStepIDError reports two invocations sharing a step id.
type DuplicateStepIDError struct {
	ID string
}

func (e *DuplicateStepIDError) Error() string {
	return fmt.Sprintf("duplicate step id %q", e.ID)
}

// UnresolvedReferenceError reports a reference to a step or output port
// that is absent from the invocation set.
type UnresolvedReferenceError struct {
	// StepID is the step holding the dangling reference.
	StepID string
	// Ref is the referenced identifier, either "step" or "step.output".
	Ref string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("step %q references unknown identifier %q", e.StepID, e.Ref)
}

// CycleError reports a dependency cycle. Path holds the ordered step ids
// forming the cycle, starting and ending at the same step.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}
