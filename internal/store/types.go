package store

import (
	"encoding/json"
	"time"

	"github.com/relayworks/relay/pkg/schema"
)

// Execution is the persisted representation of one workflow run.
type Execution struct {
	ID             string                 `json:"id"`
	WorkflowID     string                 `json:"workflow_id"`
	Status         schema.ExecutionStatus `json:"status"`
	TriggerPayload map[string]any         `json:"trigger_payload,omitempty"`
	Context        map[string]any         `json:"context,omitempty"`
	Result         json.RawMessage        `json:"result,omitempty"`
	Error          string                 `json:"error,omitempty"`
	ApprovalID     string                 `json:"approval_id,omitempty"`
	RetryCount     int                    `json:"retry_count"`
	MaxRetries     int                    `json:"max_retries"`
	NextRetryAt    *time.Time             `json:"next_retry_at,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	StartedAt      *time.Time             `json:"started_at,omitempty"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// StepRecord is the materialized state of one step within an execution.
type StepRecord struct {
	ExecutionID string            `json:"execution_id"`
	StepID      string            `json:"step_id"`
	Status      schema.StepStatus `json:"status"`
	Output      json.RawMessage   `json:"output,omitempty"`
	Error       string            `json:"error,omitempty"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	DurationMs  int64             `json:"duration_ms,omitempty"`
}

// Event is an immutable entry in the execution event log.
type Event struct {
	ID          int64           `json:"id"`
	ExecutionID string          `json:"execution_id"`
	StepID      string          `json:"step_id,omitempty"`
	Type        string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	ActorID     string          `json:"actor_id,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Sequence    int64           `json:"sequence"`
}

// ScheduledTrigger is a cron-driven workflow trigger.
type ScheduledTrigger struct {
	ID             string          `json:"id"`
	WorkflowID     string          `json:"workflow_id"`
	CronExpression string          `json:"cron_expression"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Enabled        bool            `json:"enabled"`
	LastRunAt      *time.Time      `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time      `json:"next_run_at,omitempty"`
	LastRunStatus  string          `json:"last_run_status,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// --- Filter and update types ---

// ExecutionFilter specifies criteria for listing executions.
type ExecutionFilter struct {
	Status        *schema.ExecutionStatus `json:"status,omitempty"`
	WorkflowID    string                  `json:"workflow_id,omitempty"`
	UpdatedBefore *time.Time              `json:"updated_before,omitempty"`
	StartedBefore *time.Time              `json:"started_before,omitempty"`
	RetryDue      *time.Time              `json:"retry_due,omitempty"`
	Since         *time.Time              `json:"since,omitempty"`
	Limit         int                     `json:"limit,omitempty"`
	Offset        int                     `json:"offset,omitempty"`
}

// ExecutionUpdate specifies mutable fields of an execution.
type ExecutionUpdate struct {
	Status      *schema.ExecutionStatus `json:"status,omitempty"`
	Context     map[string]any          `json:"context,omitempty"`
	Result      json.RawMessage         `json:"result,omitempty"`
	Error       *string                 `json:"error,omitempty"`
	ApprovalID  *string                 `json:"approval_id,omitempty"`
	RetryCount  *int                    `json:"retry_count,omitempty"`
	NextRetryAt *time.Time              `json:"next_retry_at,omitempty"`
	StartedAt   *time.Time              `json:"started_at,omitempty"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
}

// ApprovalFilter specifies criteria for listing approval requests.
type ApprovalFilter struct {
	Status      *schema.ApprovalStatus `json:"status,omitempty"`
	ApproverID  string                 `json:"approver_id,omitempty"`
	RequesterID string                 `json:"requester_id,omitempty"`
	Since       *time.Time             `json:"since,omitempty"`
	Limit       int                    `json:"limit,omitempty"`
}

// EventFilter specifies criteria for listing events.
type EventFilter struct {
	ExecutionID string     `json:"execution_id,omitempty"`
	StepID      string     `json:"step_id,omitempty"`
	EventType   string     `json:"event_type,omitempty"`
	Since       *time.Time `json:"since,omitempty"`
	Limit       int        `json:"limit,omitempty"`
}

// WorkflowFilter specifies criteria for listing workflow definitions.
type WorkflowFilter struct {
	Enabled     *bool              `json:"enabled,omitempty"`
	TriggerType schema.TriggerType `json:"trigger_type,omitempty"`
	Limit       int                `json:"limit,omitempty"`
}

// ScheduledTriggerUpdate specifies mutable fields of a scheduled trigger.
type ScheduledTriggerUpdate struct {
	Enabled       *bool      `json:"enabled,omitempty"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	NextRunAt     *time.Time `json:"next_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
}

// ScheduledTriggerFilter specifies criteria for listing scheduled triggers.
type ScheduledTriggerFilter struct {
	Enabled    *bool  `json:"enabled,omitempty"`
	WorkflowID string `json:"workflow_id,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}
