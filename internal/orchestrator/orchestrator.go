// Package orchestrator drives the event ingress pipeline: an inbound event
// is classified, compiled into a domain action, gated through the approval
// manager, and executed as a workflow run. It also resumes or cancels gated
// executions when their approval resolves.
package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relayworks/relay/internal/approval"
	"github.com/relayworks/relay/internal/engine"
	"github.com/relayworks/relay/internal/logging"
	"github.com/relayworks/relay/internal/queue"
	"github.com/relayworks/relay/internal/store"
	"github.com/relayworks/relay/internal/triage"
	"github.com/relayworks/relay/pkg/schema"
)

// DefaultMaxRetries is stamped on executions whose action carries none.
const DefaultMaxRetries = 3

// Config holds orchestrator tunables.
type Config struct {
	MaxRetries int
}

// TriageOutcome is the result of running one inbound event through the
// full pipeline.
type TriageOutcome struct {
	EventID        string                  `json:"event_id"`
	Classification schema.Classification   `json:"classification"`
	Action         *schema.Action          `json:"action"`
	Approval       *schema.ApprovalRequest `json:"approval,omitempty"`
	ExecutionID    string                  `json:"execution_id"`
	Status         schema.ExecutionStatus  `json:"status"`
}

// Orchestrator wires triage, approvals, the store and the executor into
// one pipeline. Executions are handed to the executor through an internal
// queue so the supervisor can re-enqueue through the same path.
type Orchestrator struct {
	store     store.Store
	executor  engine.Executor
	approvals *approval.Manager
	router    *triage.Router
	pool      *engine.WorkerPool
	queue     queue.Queue
	cfg       Config
	logger    *slog.Logger
}

// New creates an Orchestrator. The pool bounds concurrent execution walks.
func New(s store.Store, ex engine.Executor, am *approval.Manager, pool *engine.WorkerPool, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		store:     s,
		executor:  ex,
		approvals: am,
		router:    triage.NewRouter(),
		pool:      pool,
		cfg:       cfg,
		logger:    logger.With("component", "orchestrator"),
	}
	o.queue = queue.NewMemory(o.runExecution, logger)
	return o
}

// Queue exposes the dispatch queue for the supervisor's re-enqueue sweeps.
func (o *Orchestrator) Queue() queue.Queue { return o.queue }

// Close stops the dispatch queue and waits for in-flight runs it started.
func (o *Orchestrator) Close() error { return o.queue.Close() }

// ProcessEvent runs the pipeline for one inbound event: classify, compile,
// create the execution, request approval, then dispatch or park it.
func (o *Orchestrator) ProcessEvent(ctx context.Context, event schema.InboundEvent) (*TriageOutcome, error) {
	if event.Content == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "event content is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}

	cls, action, err := o.router.Triage(event)
	if err != nil {
		return nil, err
	}

	exec, err := o.createExecution(ctx, ActionWorkflowID(action.Kind), action.Payload, o.retriesFor(action))
	if err != nil {
		return nil, err
	}

	ctx = logging.WithExecutionID(ctx, exec.ID)
	o.appendEvent(ctx, exec.ID, schema.EventEventClassified, event.UserID, map[string]any{
		"event_id":      event.ID,
		"category":      cls.Category,
		"urgency_score": cls.UrgencyScore,
		"action_id":     action.ID,
		"action_kind":   action.Kind,
	})

	req, err := o.approvals.Request(ctx, action, event.UserID, exec.ID)
	if err != nil {
		return nil, err
	}

	outcome := &TriageOutcome{
		EventID:        event.ID,
		Classification: cls,
		Action:         action,
		Approval:       req,
		ExecutionID:    exec.ID,
	}

	approvalID := req.ID
	if req.Status == schema.ApprovalAutoApproved {
		if err := o.store.UpdateExecution(ctx, exec.ID, store.ExecutionUpdate{ApprovalID: &approvalID}); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "record approval id: %s", err.Error()).WithCause(err)
		}
		o.appendEvent(ctx, exec.ID, schema.EventApprovalAutoApproved, "", map[string]any{
			"approval_id": req.ID,
			"confidence":  req.ConfidenceScore,
		})
		outcome.Status = schema.ExecutionStatusPending
		if err := o.queue.Enqueue(ctx, exec.ID); err != nil {
			return nil, err
		}
		return outcome, nil
	}

	pendingApproval := schema.ExecutionStatusPendingApproval
	swapped, err := o.store.CompareAndSwapExecutionStatus(ctx, exec.ID,
		schema.ExecutionStatusPending, pendingApproval,
		store.ExecutionUpdate{ApprovalID: &approvalID})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "park execution: %s", err.Error()).WithCause(err)
	}
	if !swapped {
		return nil, schema.NewErrorf(schema.ErrCodeConflict, "execution %s left pending before gating", exec.ID)
	}
	o.appendEvent(ctx, exec.ID, schema.EventExecutionAwaitingApproval, "", map[string]any{
		"approval_id": req.ID,
		"approver_id": req.ApproverID,
	})

	outcome.Status = pendingApproval
	return outcome, nil
}

// StartExecution creates and dispatches an execution for an enabled
// workflow with the given trigger payload.
func (o *Orchestrator) StartExecution(ctx context.Context, workflowID string, payload map[string]any) (*store.Execution, error) {
	def, err := o.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "load workflow: %s", err.Error()).WithCause(err)
	}
	if def == nil {
		return nil, schema.NewError(schema.ErrCodeNotFound, "workflow not found: "+workflowID)
	}
	if !def.Enabled {
		return nil, schema.NewErrorf(schema.ErrCodeConflict, "workflow %s is disabled", workflowID)
	}

	exec, err := o.createExecution(ctx, workflowID, payload, o.cfg.MaxRetries)
	if err != nil {
		return nil, err
	}
	if err := o.queue.Enqueue(ctx, exec.ID); err != nil {
		return nil, err
	}
	return exec, nil
}

// StartScheduled satisfies scheduler.TriggerRunner: it starts an execution
// for a cron-fired workflow and records the trigger event.
func (o *Orchestrator) StartScheduled(ctx context.Context, workflowID string, payload map[string]any) (string, error) {
	exec, err := o.StartExecution(ctx, workflowID, payload)
	if err != nil {
		return "", err
	}
	o.appendEvent(ctx, exec.ID, schema.EventTriggerFired, "", map[string]any{
		"workflow_id": workflowID,
		"trigger":     "scheduled",
	})
	return exec.ID, nil
}

// Cancel terminates an execution regardless of whether it is queued,
// waiting for approval, or mid-walk.
func (o *Orchestrator) Cancel(ctx context.Context, executionID, reason string) error {
	return o.executor.Cancel(ctx, executionID, reason)
}

// ResolveApproval approves or rejects a pending request. A granted request
// re-dispatches its gated execution; a rejected one cancels it. Returns
// false when the request was not pending or the approver did not match.
func (o *Orchestrator) ResolveApproval(ctx context.Context, approvalID, approverID string, approve bool, reason string) (bool, error) {
	var (
		ok  bool
		err error
	)
	if approve {
		ok, err = o.approvals.Approve(ctx, approvalID, approverID, reason)
	} else {
		ok, err = o.approvals.Reject(ctx, approvalID, approverID, reason)
	}
	if err != nil || !ok {
		return ok, err
	}

	req, err := o.approvals.Get(ctx, approvalID)
	if err != nil {
		return true, err
	}
	if req == nil || req.ExecutionID == "" {
		return true, nil
	}

	ctx = logging.WithExecutionID(ctx, req.ExecutionID)
	if approve {
		o.appendEvent(ctx, req.ExecutionID, schema.EventApprovalGranted, approverID, map[string]any{
			"approval_id": approvalID,
			"reason":      reason,
		})
		o.appendEvent(ctx, req.ExecutionID, schema.EventExecutionResumed, approverID, nil)
		if err := o.queue.Enqueue(ctx, req.ExecutionID); err != nil {
			return true, err
		}
		return true, nil
	}

	o.appendEvent(ctx, req.ExecutionID, schema.EventApprovalRejected, approverID, map[string]any{
		"approval_id": approvalID,
		"reason":      reason,
	})
	now := time.Now().UTC()
	errMsg := "approval rejected"
	if reason != "" {
		errMsg = "approval rejected: " + reason
	}
	swapped, err := o.store.CompareAndSwapExecutionStatus(ctx, req.ExecutionID,
		schema.ExecutionStatusPendingApproval, schema.ExecutionStatusCancelled,
		store.ExecutionUpdate{Error: &errMsg, CompletedAt: &now})
	if err != nil {
		return true, schema.NewErrorf(schema.ErrCodeStore, "cancel gated execution: %s", err.Error()).WithCause(err)
	}
	if swapped {
		o.appendEvent(ctx, req.ExecutionID, schema.EventExecutionCancelled, approverID, map[string]any{
			"reason": errMsg,
		})
	}
	return true, nil
}

// retriesFor picks the retry budget for an action's execution.
func (o *Orchestrator) retriesFor(action *schema.Action) int {
	if action.MaxRetries > 0 {
		return action.MaxRetries
	}
	return o.cfg.MaxRetries
}

// createExecution persists a fresh pending execution.
func (o *Orchestrator) createExecution(ctx context.Context, workflowID string, payload map[string]any, maxRetries int) (*store.Execution, error) {
	now := time.Now().UTC()
	exec := &store.Execution{
		ID:             uuid.NewString(),
		WorkflowID:     workflowID,
		Status:         schema.ExecutionStatusPending,
		TriggerPayload: payload,
		MaxRetries:     maxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.store.CreateExecution(ctx, exec); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "create execution: %s", err.Error()).WithCause(err)
	}
	return exec, nil
}

// runExecution is the queue dispatch target: it loads the execution and its
// workflow and hands the walk to the executor through the bounded pool.
func (o *Orchestrator) runExecution(ctx context.Context, executionID string) {
	ctx = logging.WithExecutionID(ctx, executionID)

	exec, err := o.store.GetExecution(ctx, executionID)
	if err != nil {
		o.logger.ErrorContext(ctx, "load execution for dispatch", "error", err)
		return
	}
	if exec == nil {
		o.logger.WarnContext(ctx, "queued execution no longer exists")
		return
	}
	if engine.IsTerminalExecution(exec.Status) {
		return
	}

	def, err := o.store.GetWorkflow(ctx, exec.WorkflowID)
	if err != nil || def == nil {
		errMsg := "workflow definition unavailable: " + exec.WorkflowID
		failed := schema.ExecutionStatusFailed
		now := time.Now().UTC()
		if _, casErr := o.store.CompareAndSwapExecutionStatus(ctx, executionID, exec.Status, failed,
			store.ExecutionUpdate{Error: &errMsg, CompletedAt: &now}); casErr != nil {
			o.logger.ErrorContext(ctx, "fail orphaned execution", "error", casErr)
		}
		return
	}

	submitErr := o.pool.Submit(ctx, func(runCtx context.Context) error {
		result := o.executor.Run(runCtx, def, exec)
		o.logger.InfoContext(runCtx, "execution finished",
			"workflow_id", exec.WorkflowID,
			"status", result.Status,
			"steps", len(result.Steps))
		return nil
	})
	if submitErr != nil {
		o.logger.WarnContext(ctx, "pool rejected execution", "error", submitErr)
	}
}

// appendEvent writes an audit event, logging instead of failing the caller.
func (o *Orchestrator) appendEvent(ctx context.Context, executionID, eventType, actorID string, payload map[string]any) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			o.logger.WarnContext(ctx, "marshal event payload", "event_type", eventType, "error", err)
			return
		}
		raw = b
	}
	err := o.store.AppendEvent(ctx, &store.Event{
		ExecutionID: executionID,
		Type:        eventType,
		Payload:     raw,
		ActorID:     actorID,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		o.logger.WarnContext(ctx, "append event", "event_type", eventType, "error", err)
	}
}
