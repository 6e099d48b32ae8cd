package store

import (
	"context"
	"time"

	"github.com/relayworks/relay/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Workflow definitions
	CreateWorkflow(ctx context.Context, def *schema.WorkflowDefinition) error
	GetWorkflow(ctx context.Context, id string) (*schema.WorkflowDefinition, error)
	UpdateWorkflow(ctx context.Context, def *schema.WorkflowDefinition) error
	ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*schema.WorkflowDefinition, error)
	DeleteWorkflow(ctx context.Context, id string) error

	// Executions
	CreateExecution(ctx context.Context, exec *Execution) error
	GetExecution(ctx context.Context, id string) (*Execution, error)
	UpdateExecution(ctx context.Context, id string, update ExecutionUpdate) error
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, error)
	// CompareAndSwapExecutionStatus transitions an execution from one status
	// to another atomically. Returns false when the execution was not in the
	// expected status, without error.
	CompareAndSwapExecutionStatus(ctx context.Context, id string, from, to schema.ExecutionStatus, update ExecutionUpdate) (bool, error)
	DeleteExecutionsBefore(ctx context.Context, cutoff time.Time, statuses []schema.ExecutionStatus) (int64, error)

	// Step records
	UpsertStepRecord(ctx context.Context, rec *StepRecord) error
	ListStepRecords(ctx context.Context, executionID string) ([]*StepRecord, error)

	// Approvals
	CreateApproval(ctx context.Context, req *schema.ApprovalRequest) error
	GetApproval(ctx context.Context, id string) (*schema.ApprovalRequest, error)
	ListApprovals(ctx context.Context, filter ApprovalFilter) ([]*schema.ApprovalRequest, error)
	// ResolveApproval moves a pending request to the given terminal status,
	// guarded on the request still being pending and assigned to approverID.
	// Returns false when the guard did not match, without error.
	ResolveApproval(ctx context.Context, id, approverID string, status schema.ApprovalStatus, reason string) (bool, error)

	// Event log (append-only)
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, executionID string, since int64) ([]*Event, error)
	GetEventsByType(ctx context.Context, eventType string, filter EventFilter) ([]*Event, error)

	// Scheduled triggers
	CreateScheduledTrigger(ctx context.Context, trig *ScheduledTrigger) error
	GetScheduledTrigger(ctx context.Context, id string) (*ScheduledTrigger, error)
	UpdateScheduledTrigger(ctx context.Context, id string, update ScheduledTriggerUpdate) error
	ListScheduledTriggers(ctx context.Context, filter ScheduledTriggerFilter) ([]*ScheduledTrigger, error)
	DeleteScheduledTrigger(ctx context.Context, id string) error

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
