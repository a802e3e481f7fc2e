package record

import (
	"sort"
	"time"

	"github.com/specialistvlad/pipeforge/internal/artifact"
)

// StepStatus is the execution state of a single step within a run.
type StepStatus string

const (
	StepPending         StepStatus = "Pending"
	StepRunning         StepStatus = "Running"
	StepSucceeded       StepStatus = "Succeeded"
	StepCachedSucceeded StepStatus = "CachedSucceeded"
	StepFailed          StepStatus = "Failed"
	StepAborted         StepStatus = "Aborted"
)

// Terminal reports whether the status is final. Terminal step entries are
// append-only: they are never mutated once written.
func (s StepStatus) Terminal() bool {
	switch s {
	case StepSucceeded, StepCachedSucceeded, StepFailed, StepAborted:
		return true
	}
	return false
}

// Success reports whether the status represents a usable result.
func (s StepStatus) Success() bool {
	return s == StepSucceeded || s == StepCachedSucceeded
}

// RunStatus is the overall state of a run.
type RunStatus string

const (
	RunRunning    RunStatus = "Running"
	RunSuccessful RunStatus = "Successful"
	RunFailed     RunStatus = "Failed"
)

// StepRun is the recorded attempt of a single step.
type StepRun struct {
	StepID   string
	Status   StepStatus
	CacheKey string
	// CacheDisabled marks attempts whose parameters had no canonical
	// form; their CacheKey is never matched against.
	CacheDisabled bool
	// Artifacts maps output port names to the handles produced (or
	// reused) by this attempt.
	Artifacts map[string]artifact.Handle
	Error     string
	Started   time.Time
	Ended     time.Time
}

// RunRecord is one execution attempt of a pipeline graph. It is owned
// exclusively by the scheduler while the run is live and becomes immutable
// once finalized.
type RunRecord struct {
	ID       string
	Pipeline string
	Status   RunStatus
	Steps    map[string]*StepRun
	Started  time.Time
	Ended    time.Time
}

// New creates a run record with every step pending.
func New(id, pipeline string, stepIDs []string) *RunRecord {
	steps := make(map[string]*StepRun, len(stepIDs))
	for _, stepID := range stepIDs {
		steps[stepID] = &StepRun{StepID: stepID, Status: StepPending}
	}
	return &RunRecord{
		ID:       id,
		Pipeline: pipeline,
		Status:   RunRunning,
		Steps:    steps,
		Started:  time.Now(),
	}
}

// StepsWithStatus returns the sorted ids of steps in the given state.
func (r *RunRecord) StepsWithStatus(status StepStatus) []string {
	var ids []string
	for id, step := range r.Steps {
		if step.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Failed returns the sorted ids of steps that ended Failed.
func (r *RunRecord) Failed() []string {
	return r.StepsWithStatus(StepFailed)
}

// Aborted returns the sorted ids of steps that ended Aborted.
func (r *RunRecord) Aborted() []string {
	return r.StepsWithStatus(StepAborted)
}

// Reused returns the sorted ids of steps satisfied from cache.
func (r *RunRecord) Reused() []string {
	return r.StepsWithStatus(StepCachedSucceeded)
}

// Executed returns the sorted ids of steps that actually ran and
// succeeded.
func (r *RunRecord) Executed() []string {
	return r.StepsWithStatus(StepSucceeded)
}
