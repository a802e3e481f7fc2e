package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/pipeforge/internal/artifact"
	"github.com/specialistvlad/pipeforge/internal/cache"
	"github.com/specialistvlad/pipeforge/internal/ctxlog"
	"github.com/specialistvlad/pipeforge/internal/graph"
	"github.com/specialistvlad/pipeforge/internal/materialize"
	"github.com/specialistvlad/pipeforge/internal/model"
	"github.com/specialistvlad/pipeforge/internal/record"
	"github.com/specialistvlad/pipeforge/internal/runner"
)

// Scheduler drives a resolved graph to completion: cache hits are reused,
// misses are dispatched to the backend runner over a bounded worker pool,
// and failures propagate Aborted to descendants while independent branches
// continue.
type Scheduler struct {
	graph         *graph.Graph
	resolution    cache.Resolution
	runner        runner.Runner
	artifacts     artifact.Store
	materializers *materialize.Registry
	store         record.Store
	workers       int

	// recMutex makes the scheduler the single writer of the run record
	// and the shared output values.
	recMutex sync.Mutex
	run      *record.RunRecord
	nodes    map[string]*node
	outputs  map[string]map[string]cty.Value
	running  map[string]bool

	wg       sync.WaitGroup
	fatalErr error
}

// lookup returns the scheduling state of a step.
func (s *Scheduler) lookup(stepID string) *node {
	return s.nodes[stepID]
}

// setFatal records the first run-fatal error.
func (s *Scheduler) setFatal(err error) {
	s.recMutex.Lock()
	defer s.recMutex.Unlock()
	if s.fatalErr == nil {
		s.fatalErr = err
	}
}

// fatal returns the recorded run-fatal error, if any.
func (s *Scheduler) fatal() error {
	s.recMutex.Lock()
	defer s.recMutex.Unlock()
	return s.fatalErr
}

// New creates a scheduler for one run of the given graph.
func New(g *graph.Graph, resolution cache.Resolution, run runner.Runner,
	artifacts artifact.Store, materializers *materialize.Registry,
	store record.Store, workers int) *Scheduler {

	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		graph:         g,
		resolution:    resolution,
		runner:        run,
		artifacts:     artifacts,
		materializers: materializers,
		store:         store,
		workers:       workers,
		outputs:       make(map[string]map[string]cty.Value),
		running:       make(map[string]bool),
	}
}

// node is the per-run scheduling state of one graph node.
type node struct {
	graphNode *graph.Node
	depCount  atomic.Int32
	skipOnce  sync.Once
}

// Run executes the graph and returns the finalized run record. The record
// is returned even when the run fails; the error is non-nil only for
// infrastructure failures such as an unavailable backend or a store that
// refused the append.
func (s *Scheduler) Run(ctx context.Context) (*record.RunRecord, error) {
	logger := ctxlog.FromContext(ctx)

	runID := uuid.NewString()
	s.run = record.New(runID, s.graph.Pipeline, s.graph.TopoOrder())
	for stepID, decision := range s.resolution {
		s.run.Steps[stepID].CacheKey = decision.Key.Digest
		s.run.Steps[stepID].CacheDisabled = decision.Key.Disabled
	}

	s.nodes = make(map[string]*node, len(s.graph.Nodes))
	for id, graphNode := range s.graph.Nodes {
		n := &node{graphNode: graphNode}
		n.depCount.Store(int32(len(graphNode.Deps)))
		s.nodes[id] = n
	}

	readyChan := make(chan *node, len(s.nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rootCount := 0
	for _, n := range s.nodes {
		if n.depCount.Load() == 0 {
			readyChan <- n
			rootCount++
		}
	}
	logger.Debug("Scheduler initialized.", "run_id", runID, "nodes", len(s.nodes), "roots", rootCount, "workers", s.workers)

	// Forward run-level cancellation to steps that are already running.
	go s.forwardCancel(runCtx)

	s.wg.Add(len(s.nodes))
	for i := 0; i < s.workers; i++ {
		go s.worker(runCtx, readyChan, cancel, i)
	}

	logger.Info("🚀 Run started.", "run_id", runID, "pipeline", s.graph.Pipeline)
	s.wg.Wait()
	close(readyChan)

	s.finalize(ctx)

	// Terminal successes stay reusable by future runs: the record is
	// persisted even when the run was canceled or the backend went away,
	// so the save must outlive the caller's context.
	saveErr := s.store.SaveRun(context.WithoutCancel(ctx), s.run)
	if err := s.fatal(); err != nil {
		return s.run, err
	}
	if saveErr != nil {
		return s.run, fmt.Errorf("appending run record: %w", saveErr)
	}
	logger.Info("🏁 Run finished.", "run_id", runID, "status", s.run.Status,
		"reused", s.run.Reused(), "executed", s.run.Executed(),
		"failed", s.run.Failed(), "aborted", s.run.Aborted())
	return s.run, nil
}

// worker is the core processing loop for a single concurrent worker.
func (s *Scheduler) worker(ctx context.Context, readyChan chan *node, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx).With("worker", workerID)

	for n := range readyChan {
		stepID := n.graphNode.Spec.ID

		if ctx.Err() != nil {
			n.skipOnce.Do(func() {
				logger.Warn("Run canceled, aborting step before start.", "step", stepID)
				s.setTerminal(stepID, record.StepAborted, ctx.Err().Error())
				s.wg.Done()
				// Dependents will never be unlocked; settle them here so
				// the pool can drain.
				s.abortDependents(ctx, n)
			})
			continue
		}

		err := s.processNode(ctx, n)
		if err != nil {
			logger.Error("Step failed.", "step", stepID, "error", err)
			s.setTerminal(stepID, record.StepFailed, err.Error())
			if errors.Is(err, runner.ErrBackendUnavailable) {
				// Fatal to the whole run; steps already succeeded keep
				// their artifacts.
				s.setFatal(err)
				cancel()
			}
			s.abortDependents(ctx, n)
			s.wg.Done()
			continue
		}

		s.unlockDependents(n, readyChan)
		s.wg.Done()
	}
}

// processNode reuses a cache hit or dispatches the step to the runner.
func (s *Scheduler) processNode(ctx context.Context, n *node) error {
	spec := n.graphNode.Spec
	decision := s.resolution[spec.ID]
	logger := ctxlog.FromContext(ctx).With("step", spec.ID)

	if decision.Hit {
		logger.Info("♻️ Reusing cached result.", "step", spec.ID)
		return s.reuse(ctx, spec, decision.Prior)
	}

	inputs, err := s.resolveInputs(spec)
	if err != nil {
		return err
	}

	s.setRunning(spec.ID)
	defer s.clearRunning(spec.ID)

	logger.Info("▶️ Executing step.", "step", spec.ID)
	outputs, err := s.runner.Execute(ctx, spec, inputs)
	if err != nil {
		return err
	}

	handles, err := s.persistOutputs(ctx, spec, outputs)
	if err != nil {
		return err
	}

	s.recMutex.Lock()
	step := s.run.Steps[spec.ID]
	step.Status = record.StepSucceeded
	step.Artifacts = handles
	step.Ended = time.Now()
	s.outputs[spec.ID] = outputs
	s.recMutex.Unlock()

	logger.Info("✅ Step succeeded.", "step", spec.ID)
	return nil
}

// reuse loads the prior attempt's artifacts and records a cached success
// without invoking step logic.
func (s *Scheduler) reuse(ctx context.Context, spec *model.StepSpec, prior *record.StepRun) error {
	outputs := make(map[string]cty.Value, len(prior.Artifacts))
	handles := make(map[string]artifact.Handle, len(prior.Artifacts))
	for _, output := range spec.OutputNames() {
		handle := prior.Artifacts[output]
		data, err := s.artifacts.Read(ctx, handle.Locator)
		if err != nil {
			return fmt.Errorf("reading cached artifact %q: %w", handle.Locator, err)
		}
		val, err := s.materializers.Load(handle.Tag, data)
		if err != nil {
			return fmt.Errorf("loading cached artifact %q: %w", handle.Locator, err)
		}
		outputs[output] = val
		handles[output] = handle
	}

	s.recMutex.Lock()
	step := s.run.Steps[spec.ID]
	step.Status = record.StepCachedSucceeded
	step.Artifacts = handles
	step.Ended = time.Now()
	s.outputs[spec.ID] = outputs
	s.recMutex.Unlock()
	return nil
}

// resolveInputs assembles the input values of a step from upstream outputs
// and literal bindings.
func (s *Scheduler) resolveInputs(spec *model.StepSpec) (map[string]cty.Value, error) {
	s.recMutex.Lock()
	defer s.recMutex.Unlock()

	inputs := make(map[string]cty.Value, len(spec.Inputs))
	for name, ref := range spec.Inputs {
		if !ref.IsData() {
			inputs[name] = ref.Literal
			continue
		}
		upstream, ok := s.outputs[ref.StepID]
		if !ok {
			return nil, fmt.Errorf("internal: upstream %q resolved no outputs", ref.StepID)
		}
		val, ok := upstream[ref.Output]
		if !ok {
			return nil, fmt.Errorf("internal: upstream %q has no output %q", ref.StepID, ref.Output)
		}
		inputs[name] = val
	}
	return inputs, nil
}

// persistOutputs saves each produced value through its declared
// materializer and returns the artifact handles.
func (s *Scheduler) persistOutputs(ctx context.Context, spec *model.StepSpec, outputs runner.Outputs) (map[string]artifact.Handle, error) {
	handles := make(map[string]artifact.Handle, len(spec.Outputs))
	for _, decl := range spec.Outputs {
		val, ok := outputs[decl.Name]
		if !ok {
			return nil, fmt.Errorf("runner produced no value for output %q", decl.Name)
		}
		tag := decl.Tag
		if tag == "" {
			tag = s.materializers.Default()
		}
		data, err := s.materializers.Save(tag, val)
		if err != nil {
			return nil, fmt.Errorf("materializing output %q: %w", decl.Name, err)
		}
		locator := artifact.Locator(spec.ID, decl.Name, s.run.ID)
		if err := s.artifacts.Write(ctx, locator, data); err != nil {
			return nil, fmt.Errorf("persisting output %q: %w", decl.Name, err)
		}
		handles[decl.Name] = artifact.Handle{
			ID:      uuid.NewString(),
			Output:  decl.Name,
			Locator: locator,
			Tag:     tag,
		}
	}
	return handles, nil
}

// abortDependents recursively marks all downstream steps as aborted.
func (s *Scheduler) abortDependents(ctx context.Context, n *node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range n.graphNode.Dependents {
		dep := s.lookup(dependent.Spec.ID)
		dep.skipOnce.Do(func() {
			logger.Warn("Aborting step due to upstream failure.",
				"step", dependent.Spec.ID, "upstream", n.graphNode.Spec.ID)
			s.setTerminal(dependent.Spec.ID,
				record.StepAborted,
				fmt.Sprintf("aborted due to upstream failure of %q", n.graphNode.Spec.ID))
			s.wg.Done()
			s.abortDependents(ctx, dep)
		})
	}
}

// unlockDependents releases steps whose last predecessor just resolved.
func (s *Scheduler) unlockDependents(n *node, readyChan chan *node) {
	for _, dependent := range n.graphNode.Dependents {
		dep := s.lookup(dependent.Spec.ID)
		if dep.depCount.Add(-1) == 0 {
			readyChan <- dep
		}
	}
}

// finalize settles the run status from the terminal step states. Steps
// still pending after the pool drained were unreachable due to
// cancellation; they are aborted, never silently dropped.
func (s *Scheduler) finalize(ctx context.Context) {
	s.recMutex.Lock()
	defer s.recMutex.Unlock()

	status := record.RunSuccessful
	for _, step := range s.run.Steps {
		if step.Status == record.StepPending || step.Status == record.StepRunning {
			step.Status = record.StepAborted
			step.Ended = time.Now()
		}
		if step.Status == record.StepFailed || step.Status == record.StepAborted {
			status = record.RunFailed
		}
	}
	s.run.Status = status
	s.run.Ended = time.Now()
}

// forwardCancel relays run-level cancellation to running steps through the
// backend interface.
func (s *Scheduler) forwardCancel(ctx context.Context) {
	<-ctx.Done()
	s.recMutex.Lock()
	var ids []string
	for id := range s.running {
		ids = append(ids, id)
	}
	s.recMutex.Unlock()
	for _, id := range ids {
		s.runner.Cancel(id)
	}
}

func (s *Scheduler) setRunning(stepID string) {
	s.recMutex.Lock()
	defer s.recMutex.Unlock()
	step := s.run.Steps[stepID]
	step.Status = record.StepRunning
	step.Started = time.Now()
	s.running[stepID] = true
}

func (s *Scheduler) clearRunning(stepID string) {
	s.recMutex.Lock()
	defer s.recMutex.Unlock()
	delete(s.running, stepID)
}

// setTerminal writes a terminal state exactly once; terminal entries are
// append-only and never retracted.
func (s *Scheduler) setTerminal(stepID string, status record.StepStatus, message string) {
	s.recMutex.Lock()
	defer s.recMutex.Unlock()
	step := s.run.Steps[stepID]
	if step.Status.Terminal() {
		return
	}
	step.Status = status
	step.Error = message
	step.Ended = time.Now()
}
