package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/relayworks/relay/internal/expressions"
	"github.com/relayworks/relay/internal/handlers"
	"github.com/relayworks/relay/internal/logging"
	"github.com/relayworks/relay/internal/store"
	"github.com/relayworks/relay/pkg/schema"
)

// Executor walks a workflow graph for one execution at a time: it starts
// at the trigger, follows the first matching guarded connection out of
// each node, and dispatches each visited step to its registered handler.
type Executor interface {
	// Run drives an execution to a terminal or waiting state. It never
	// returns an error; failures are folded into the result and the
	// persisted execution record.
	Run(ctx context.Context, def *schema.WorkflowDefinition, exec *store.Execution) *ExecutionResult

	// Cancel terminates an execution, cascading a skip to all steps that
	// have not reached a terminal state.
	Cancel(ctx context.Context, executionID string, reason string) error

	// Status returns the current state of an execution.
	Status(ctx context.Context, executionID string) (*ExecutionSnapshot, error)
}

// ExecutionResult is returned by Run with the walk outcome.
type ExecutionResult struct {
	ExecutionID string                 `json:"execution_id"`
	WorkflowID  string                 `json:"workflow_id"`
	Status      schema.ExecutionStatus `json:"status"`
	Output      json.RawMessage        `json:"output,omitempty"`
	Error       *schema.RelayError     `json:"error,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Steps       map[string]*StepResult `json:"steps,omitempty"`
	Path        []string               `json:"path,omitempty"`
}

// StepResult summarizes the outcome of a single step.
type StepResult struct {
	StepID     string             `json:"step_id"`
	Status     schema.StepStatus  `json:"status"`
	Output     json.RawMessage    `json:"output,omitempty"`
	Error      *schema.RelayError `json:"error,omitempty"`
	DurationMs int64              `json:"duration_ms,omitempty"`
}

// ExecutionSnapshot is a point-in-time view of an execution for querying.
type ExecutionSnapshot struct {
	Execution *store.Execution             `json:"execution"`
	Steps     map[string]*store.StepRecord `json:"steps,omitempty"`
	Events    []*store.Event               `json:"events,omitempty"`
}

// EventLogger abstracts the event log operations needed by the executor.
// Satisfied by *store.EventLog and test mocks.
type EventLogger interface {
	EventAppender
	GetEvents(ctx context.Context, executionID string, since int64) ([]*store.Event, error)
	ReplayEvents(ctx context.Context, executionID string) (map[string]*store.StepRecord, error)
}

// DefaultStepTimeout bounds a step whose definition carries no timeout.
const DefaultStepTimeout = 60 * time.Second

// ExecutorConfig holds configuration for the executor.
type ExecutorConfig struct {
	StepTimeout    time.Duration        // default per-step timeout when the step has none
	CircuitBreaker CircuitBreakerConfig // per-step-type breaker settings
}

// executorImpl is the concrete Executor implementation.
type executorImpl struct {
	store        store.Store
	eventLog     EventLogger
	execFSM      *ExecutionFSM
	stepFSM      *StepFSM
	registry     handlers.HandlerRegistry
	evaluator    *ConditionEvaluator
	interpolator *expressions.Interpolator
	breakers     *CircuitBreakerRegistry
	config       ExecutorConfig
	logger       *slog.Logger

	// mu guards running map.
	mu      sync.Mutex
	running map[string]*executionRun
}

// executionRun tracks a single in-flight execution walk.
type executionRun struct {
	executionID string
	graph       *Graph
	scope       *expressions.ScopeBuilder
	cancel      context.CancelFunc
	mu          sync.Mutex // guards records
	records     map[string]*store.StepRecord
}

// NewExecutor creates a new Executor with the given dependencies.
func NewExecutor(s store.Store, el EventLogger, registry handlers.HandlerRegistry, cfg ExecutorConfig, logger *slog.Logger) Executor {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultStepTimeout
	}
	if cfg.CircuitBreaker.FailureThreshold <= 0 {
		cfg.CircuitBreaker = DefaultCircuitBreakerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	// CEL engine is optional; guards with expressions check nil before use.
	celEngine, _ := expressions.NewCELEngine()

	return &executorImpl{
		store:        s,
		eventLog:     el,
		execFSM:      NewExecutionFSM(el),
		stepFSM:      NewStepFSM(el),
		registry:     registry,
		evaluator:    NewConditionEvaluator(celEngine),
		interpolator: expressions.NewInterpolator(),
		breakers:     NewCircuitBreakerRegistry(cfg.CircuitBreaker),
		config:       cfg,
		logger:       logger,
		running:      make(map[string]*executionRun),
	}
}

// Run walks the workflow graph for the given execution.
func (e *executorImpl) Run(ctx context.Context, def *schema.WorkflowDefinition, exec *store.Execution) *ExecutionResult {
	startedAt := time.Now().UTC()
	result := &ExecutionResult{
		ExecutionID: exec.ID,
		WorkflowID:  exec.WorkflowID,
		Status:      schema.ExecutionStatusRunning,
		StartedAt:   startedAt,
		Steps:       make(map[string]*StepResult),
	}

	ctx = logging.WithIDs(ctx, exec.ID, exec.WorkflowID, "")

	graph, err := ParseGraph(def)
	if err != nil {
		return e.failBeforeStart(ctx, exec, result, toRelayError(err))
	}

	// Claim the execution: only one walker may move it to running.
	claimed, err := e.store.CompareAndSwapExecutionStatus(ctx, exec.ID, exec.Status, schema.ExecutionStatusRunning, store.ExecutionUpdate{
		StartedAt: &startedAt,
	})
	if err != nil {
		return e.failBeforeStart(ctx, exec, result, schema.NewErrorf(schema.ErrCodeStore, "claim execution: %s", err.Error()).WithCause(err))
	}
	if !claimed {
		result.Status = exec.Status
		result.Error = schema.NewErrorf(schema.ErrCodeConflict, "execution %s no longer in status %s", exec.ID, exec.Status)
		return result
	}

	if err := e.execFSM.Transition(ctx, exec.ID, exec.Status, schema.ExecutionStatusRunning); err != nil {
		e.logger.WarnContext(ctx, "start transition event not recorded", "error", err)
	}

	execCtx, execCancel := context.WithCancel(ctx)
	defer execCancel()

	run := &executionRun{
		executionID: exec.ID,
		graph:       graph,
		scope:       expressions.NewScopeBuilder(exec.TriggerPayload, def.Variables),
		cancel:      execCancel,
		records:     make(map[string]*store.StepRecord, len(graph.Steps)),
	}
	e.mu.Lock()
	e.running[exec.ID] = run
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.running, exec.ID)
		e.mu.Unlock()
	}()

	// Rehydrate step outputs when resuming a previously started walk.
	e.rehydrate(execCtx, run)

	e.walk(execCtx, run, result)

	e.finalize(ctx, run, result)
	return result
}

// walk follows guarded connections from the trigger until no connection
// matches, a step failure stops the execution, or the context is cancelled.
// Cancellation is observed only at connection boundaries; a dispatched step
// always runs to completion of its own timeout.
func (e *executorImpl) walk(ctx context.Context, run *executionRun, result *ExecutionResult) {
	conns := run.graph.Entry

	for {
		if ctx.Err() != nil {
			result.Status = schema.ExecutionStatusCancelled
			result.Error = schema.NewError(schema.ErrCodeCancelled, "execution cancelled")
			return
		}

		picked, err := e.evaluator.PickConnection(ctx, conns, run.scope)
		if err != nil {
			result.Status = schema.ExecutionStatusFailed
			result.Error = toRelayError(err)
			return
		}
		if picked == nil {
			// No matching connection: the walk ends successfully.
			result.Status = schema.ExecutionStatusCompleted
			return
		}

		stepID := picked.ToID
		step := run.graph.Steps[stepID]
		result.Path = append(result.Path, stepID)

		// Previously finished steps are not re-executed on resume.
		if rec := run.record(stepID); rec != nil && isTerminalStep(rec.Status) {
			result.Steps[stepID] = stepResultFromRecord(rec)
			conns = run.graph.Outgoing[stepID]
			continue
		}

		stepResult := e.executeStep(ctx, run, step)
		result.Steps[stepID] = stepResult

		if stepResult.Status == schema.StepStatusFailed && !step.ContinueOnFailure {
			result.Status = schema.ExecutionStatusFailed
			result.Error = stepResult.Error
			if result.Error == nil {
				result.Error = schema.NewErrorf(schema.ErrCodeStepFailed, "step %s failed", stepID).WithStep(stepID)
			}
			return
		}

		conns = run.graph.Outgoing[stepID]
	}
}

// executeStep runs one step: condition check, handler dispatch, state
// transitions, and persistence. It never returns an error; the outcome is
// captured in the StepResult and the step record.
func (e *executorImpl) executeStep(ctx context.Context, run *executionRun, step *schema.Step) *StepResult {
	stepCtx := logging.WithStepID(ctx, step.ID)
	result := &StepResult{StepID: step.ID}

	rec := &store.StepRecord{
		ExecutionID: run.executionID,
		StepID:      step.ID,
		Status:      schema.StepStatusPending,
	}
	run.setRecord(rec)

	// Failed conditions skip the step; the walk continues from it.
	hold, err := e.evaluator.EvaluateAll(stepCtx, step.Conditions, run.scope)
	if err != nil {
		e.logger.WarnContext(stepCtx, "step condition evaluation failed, skipping step", "error", err)
		hold = false
	}
	if !hold {
		if fsmErr := e.stepFSM.Transition(stepCtx, run.executionID, step.ID, schema.StepStatusPending, schema.StepStatusSkipped); fsmErr != nil {
			e.logger.WarnContext(stepCtx, "skip transition event not recorded", "error", fsmErr)
		}
		rec.Status = schema.StepStatusSkipped
		e.persistRecord(stepCtx, rec)
		result.Status = schema.StepStatusSkipped
		return result
	}

	if fsmErr := e.stepFSM.Transition(stepCtx, run.executionID, step.ID, schema.StepStatusPending, schema.StepStatusRunning); fsmErr != nil {
		e.logger.WarnContext(stepCtx, "start transition event not recorded", "error", fsmErr)
	}
	startedAt := time.Now().UTC()
	rec.Status = schema.StepStatusRunning
	rec.StartedAt = &startedAt
	e.persistRecord(stepCtx, rec)

	output, execErr := e.dispatch(stepCtx, run, step)

	completedAt := time.Now().UTC()
	rec.CompletedAt = &completedAt
	rec.DurationMs = completedAt.Sub(startedAt).Milliseconds()
	result.DurationMs = rec.DurationMs

	if execErr != nil {
		relayErr := toRelayError(execErr).WithStep(step.ID)
		errPayload, _ := json.Marshal(map[string]string{"error": relayErr.Error()})
		if fsmErr := e.stepFSM.transitionWithPayload(stepCtx, run.executionID, step.ID, schema.StepStatusRunning, schema.StepStatusFailed, errPayload); fsmErr != nil {
			e.logger.WarnContext(stepCtx, "failure transition event not recorded", "error", fsmErr)
		}
		rec.Status = schema.StepStatusFailed
		rec.Error = relayErr.Error()
		e.persistRecord(stepCtx, rec)
		result.Status = schema.StepStatusFailed
		result.Error = relayErr
		e.logger.ErrorContext(stepCtx, "step failed",
			"step_type", string(step.Type),
			"continue_on_failure", step.ContinueOnFailure,
			"error", relayErr)
		return result
	}

	if fsmErr := e.stepFSM.transitionWithPayload(stepCtx, run.executionID, step.ID, schema.StepStatusRunning, schema.StepStatusCompleted, output); fsmErr != nil {
		e.logger.WarnContext(stepCtx, "completion transition event not recorded", "error", fsmErr)
	}
	rec.Status = schema.StepStatusCompleted
	rec.Output = output
	e.persistRecord(stepCtx, rec)

	// Merge the output into the shared scope under the step's ID so later
	// guards and interpolations can reference it.
	if len(output) > 0 {
		if err := run.scope.AddStepOutput(step.ID, output); err != nil {
			e.logger.WarnContext(stepCtx, "step output not merged into scope", "error", err)
		}
	}

	result.Status = schema.StepStatusCompleted
	result.Output = output
	return result
}

// dispatch resolves the step's configuration against the scope and invokes
// the registered handler under the step's timeout.
func (e *executorImpl) dispatch(ctx context.Context, run *executionRun, step *schema.Step) (json.RawMessage, error) {
	handler, err := e.registry.Get(step.Type)
	if err != nil {
		return nil, err
	}
	if err := e.breakers.AllowDispatch(step.Type); err != nil {
		return nil, err
	}

	config, err := e.interpolator.ResolveConfig(step.Config, run.scope.Build())
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
			"resolve config for step %s: %s", step.ID, err.Error()).WithStep(step.ID).WithCause(err)
	}

	timeout := e.config.StepTimeout
	if step.TimeoutSeconds > 0 {
		timeout = time.Duration(step.TimeoutSeconds) * time.Second
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	input := handlers.Input{
		Config: config,
		Context: mergedContext(run, map[string]any{
			"execution_id": run.executionID,
			"step_id":      step.ID,
		}),
	}

	out, err := handler.Execute(stepCtx, input)
	if err != nil {
		e.breakers.RecordFailure(step.Type)
		if stepCtx.Err() == context.DeadlineExceeded {
			return nil, schema.NewErrorf(schema.ErrCodeTimeout, "step %s timed out after %s", step.ID, timeout).WithStep(step.ID)
		}
		return nil, err
	}
	e.breakers.RecordSuccess(step.Type)
	if out != nil {
		return out.Data, nil
	}
	return nil, nil
}

// Cancel terminates an execution.
func (e *executorImpl) Cancel(ctx context.Context, executionID string, reason string) error {
	exec, err := e.store.GetExecution(ctx, executionID)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "load execution: %s", err.Error()).WithCause(err)
	}
	if exec == nil {
		return schema.NewError(schema.ErrCodeNotFound, "execution not found: "+executionID)
	}
	if IsTerminalExecution(exec.Status) {
		return schema.NewErrorf(schema.ErrCodeConflict, "execution %s already %s", executionID, exec.Status)
	}

	records, err := e.store.ListStepRecords(ctx, executionID)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "list step records: %s", err.Error()).WithCause(err)
	}
	states := make(map[string]schema.StepStatus, len(records))
	for _, rec := range records {
		states[rec.StepID] = rec.Status
	}

	if err := CancelExecution(ctx, e.execFSM, e.stepFSM, executionID, exec.Status, states); err != nil {
		return err
	}

	now := time.Now().UTC()
	cancelled := schema.ExecutionStatusCancelled
	errMsg := reason
	if errMsg == "" {
		errMsg = "cancelled"
	}
	swapped, err := e.store.CompareAndSwapExecutionStatus(ctx, executionID, exec.Status, cancelled, store.ExecutionUpdate{
		Error:       &errMsg,
		CompletedAt: &now,
	})
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "persist cancellation: %s", err.Error()).WithCause(err)
	}
	if !swapped {
		return schema.NewErrorf(schema.ErrCodeConflict, "execution %s changed status during cancellation", executionID)
	}

	for _, rec := range records {
		if canSkip(rec.Status) {
			rec.Status = schema.StepStatusSkipped
			if err := e.store.UpsertStepRecord(ctx, rec); err != nil {
				return schema.NewErrorf(schema.ErrCodeStore, "skip step %s: %s", rec.StepID, err.Error()).WithCause(err)
			}
		}
	}

	// If the walk is in flight, its context stops it at the next connection.
	e.mu.Lock()
	if run, ok := e.running[executionID]; ok {
		run.cancel()
	}
	e.mu.Unlock()

	return nil
}

// Status returns the current execution state snapshot.
func (e *executorImpl) Status(ctx context.Context, executionID string) (*ExecutionSnapshot, error) {
	exec, err := e.store.GetExecution(ctx, executionID)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "load execution: %s", err.Error()).WithCause(err)
	}
	if exec == nil {
		return nil, schema.NewError(schema.ErrCodeNotFound, "execution not found: "+executionID)
	}

	records, err := e.store.ListStepRecords(ctx, executionID)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list step records: %s", err.Error()).WithCause(err)
	}
	recordMap := make(map[string]*store.StepRecord, len(records))
	for _, rec := range records {
		recordMap[rec.StepID] = rec
	}

	events, err := e.eventLog.GetEvents(ctx, executionID, 0)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "get events: %s", err.Error()).WithCause(err)
	}

	return &ExecutionSnapshot{
		Execution: exec,
		Steps:     recordMap,
		Events:    events,
	}, nil
}

// --- Helpers ---

// rehydrate reloads step records from the event log so a resumed walk can
// skip finished steps and see their outputs in scope.
func (e *executorImpl) rehydrate(ctx context.Context, run *executionRun) {
	records, err := e.eventLog.ReplayEvents(ctx, run.executionID)
	if err != nil {
		e.logger.WarnContext(ctx, "event replay failed, walking from the top", "error", err)
		return
	}
	for stepID, rec := range records {
		run.setRecord(rec)
		if rec.Status == schema.StepStatusCompleted && len(rec.Output) > 0 {
			if err := run.scope.AddStepOutput(stepID, rec.Output); err != nil {
				e.logger.WarnContext(ctx, "replayed output not merged into scope", "step_id", stepID, "error", err)
			}
		}
	}
}

// finalize emits the terminal transition and persists the execution outcome.
func (e *executorImpl) finalize(ctx context.Context, run *executionRun, result *ExecutionResult) {
	// The walk context may be cancelled; persistence must still happen.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}

	now := time.Now().UTC()
	result.CompletedAt = &now

	outputs := run.scope.StepOutputs()
	if len(outputs) > 0 {
		if data, err := json.Marshal(outputs); err == nil {
			result.Output = data
		}
	}

	if err := e.execFSM.Transition(ctx, run.executionID, schema.ExecutionStatusRunning, result.Status); err != nil {
		e.logger.WarnContext(ctx, "terminal transition event not recorded", "status", string(result.Status), "error", err)
	}

	update := store.ExecutionUpdate{
		Context:     run.scope.Context(),
		CompletedAt: &now,
	}
	if result.Output != nil {
		update.Result = result.Output
	}
	if result.Error != nil {
		msg := result.Error.Error()
		update.Error = &msg
	}

	swapped, err := e.store.CompareAndSwapExecutionStatus(ctx, run.executionID, schema.ExecutionStatusRunning, result.Status, update)
	if err != nil {
		e.logger.ErrorContext(ctx, "execution outcome not persisted", "error", err)
		return
	}
	if !swapped {
		// The supervisor or a cancel moved the execution first; its state wins.
		e.logger.WarnContext(ctx, "execution moved out of running before finalize", "intended_status", string(result.Status))
	}
}

// failBeforeStart marks an execution failed before the walk began.
func (e *executorImpl) failBeforeStart(ctx context.Context, exec *store.Execution, result *ExecutionResult, relayErr *schema.RelayError) *ExecutionResult {
	now := time.Now().UTC()
	msg := relayErr.Error()
	failed := schema.ExecutionStatusFailed
	if _, err := e.store.CompareAndSwapExecutionStatus(ctx, exec.ID, exec.Status, failed, store.ExecutionUpdate{
		Error:       &msg,
		CompletedAt: &now,
	}); err != nil {
		e.logger.ErrorContext(ctx, "failure not persisted", "error", err)
	}
	_ = e.eventLog.AppendEvent(ctx, &store.Event{
		ExecutionID: exec.ID,
		Type:        schema.EventExecutionFailed,
		Payload:     mustJSON(map[string]string{"error": msg}),
	})

	result.Status = schema.ExecutionStatusFailed
	result.Error = relayErr
	result.CompletedAt = &now
	return result
}

func (e *executorImpl) persistRecord(ctx context.Context, rec *store.StepRecord) {
	if err := e.store.UpsertStepRecord(ctx, rec); err != nil {
		e.logger.ErrorContext(ctx, "step record not persisted", "step_id", rec.StepID, "error", err)
	}
}

func (run *executionRun) record(stepID string) *store.StepRecord {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.records[stepID]
}

func (run *executionRun) setRecord(rec *store.StepRecord) {
	run.mu.Lock()
	run.records[rec.StepID] = rec
	run.mu.Unlock()
}

func mergedContext(run *executionRun, extra map[string]any) map[string]any {
	merged := run.scope.Context()
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func stepResultFromRecord(rec *store.StepRecord) *StepResult {
	sr := &StepResult{
		StepID:     rec.StepID,
		Status:     rec.Status,
		Output:     rec.Output,
		DurationMs: rec.DurationMs,
	}
	if rec.Error != "" {
		sr.Error = schema.NewError(schema.ErrCodeStepFailed, rec.Error).WithStep(rec.StepID)
	}
	return sr
}

func toRelayError(err error) *schema.RelayError {
	if relayErr, ok := err.(*schema.RelayError); ok {
		return relayErr
	}
	return schema.NewErrorf(schema.ErrCodeExecution, "%s", err.Error()).WithCause(err)
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(fmt.Sprintf("%q", err.Error()))
	}
	return data
}
