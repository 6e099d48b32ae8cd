package schema

import "time"

// WorkflowDefinition is the JSON-serializable workflow format: a trigger,
// a set of steps, and guarded connections between them.
type WorkflowDefinition struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Trigger     Trigger        `json:"trigger"`
	Steps       []Step         `json:"steps"`
	Connections []Connection   `json:"connections"`
	Variables   map[string]any `json:"variables,omitempty"`
	Enabled     bool           `json:"enabled"`
	CreatedAt   time.Time      `json:"created_at,omitzero"`
	UpdatedAt   time.Time      `json:"updated_at,omitzero"`
}

// Trigger describes the entry point of a workflow.
type Trigger struct {
	ID      string         `json:"id"`
	Type    TriggerType    `json:"type"`
	Name    string         `json:"name,omitempty"`
	Config  map[string]any `json:"config,omitempty"`
	Enabled bool           `json:"enabled"`
}

// TriggerType enumerates the sources that can start a workflow.
type TriggerType string

const (
	TriggerEmailReceived TriggerType = "email_received"
	TriggerChatMessage   TriggerType = "chat_message"
	TriggerTaskCreated   TriggerType = "task_created"
	TriggerTaskCompleted TriggerType = "task_completed"
	TriggerScheduled     TriggerType = "scheduled"
	TriggerManual        TriggerType = "manual"
	TriggerWebhook       TriggerType = "webhook"
)

// Step describes a single step in a workflow.
type Step struct {
	ID                string         `json:"id"`
	Type              StepType       `json:"type"`
	Name              string         `json:"name,omitempty"`
	Config            map[string]any `json:"config,omitempty"`
	Conditions        []Condition    `json:"conditions,omitempty"`
	ContinueOnFailure bool           `json:"continue_on_failure,omitempty"`
	TimeoutSeconds    int            `json:"timeout_seconds,omitempty"`
}

// StepType enumerates the kinds of steps a workflow can dispatch.
type StepType string

const (
	StepSendNotification StepType = "send_notification"
	StepCreateTask       StepType = "create_task"
	StepUpdateTask       StepType = "update_task"
	StepSendMessage      StepType = "send_message"
	StepSendEmail        StepType = "send_email"
	StepScheduleEvent    StepType = "schedule_event"
	StepWebhookCall      StepType = "webhook_call"
	StepDelay            StepType = "delay"
	StepTransform        StepType = "transform"
	StepCompute          StepType = "compute"
)

// Connection is a directed, optionally guarded edge between a trigger or
// step and a downstream step.
type Connection struct {
	ID     string     `json:"id"`
	FromID string     `json:"from_id"`
	ToID   string     `json:"to_id"`
	Guard  *Condition `json:"guard,omitempty"`
}

// Condition compares a dot-path field of the execution context against a
// value, or evaluates an expression when Expression is set.
type Condition struct {
	Field      string   `json:"field,omitempty"`
	Operator   Operator `json:"operator,omitempty"`
	Value      any      `json:"value,omitempty"`
	Expression string   `json:"expression,omitempty"` // CEL, overrides Field/Operator when set
}

// Operator enumerates the comparison operators available in conditions.
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
	OpGreaterThan    Operator = "greater_than"
	OpLessThan       Operator = "less_than"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessOrEqual    Operator = "less_or_equal"
	OpIsEmpty        Operator = "is_empty"
	OpIsNotEmpty     Operator = "is_not_empty"
)
