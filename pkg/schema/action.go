package schema

import "time"

// ActionKind enumerates the domains an inbound event can be routed to.
type ActionKind string

const (
	ActionTriage     ActionKind = "triage"
	ActionScheduling ActionKind = "scheduling"
	ActionFollowUp   ActionKind = "follow_up"
	ActionEscalation ActionKind = "escalation"
	ActionDecision   ActionKind = "decision"
	ActionResearch   ActionKind = "research"
)

// Priority enumerates action urgency levels.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ActionStatus tracks the approval gate outcome on an action. Status is
// the only field that changes after a compiler produces the action.
type ActionStatus string

const (
	ActionStatusPending  ActionStatus = "pending"
	ActionStatusApproved ActionStatus = "approved"
	ActionStatusRejected ActionStatus = "rejected"
)

// Action is a concrete, executable unit of work produced by a domain
// compiler from a classified event.
type Action struct {
	ID               string         `json:"id"`
	Kind             ActionKind     `json:"kind"`
	Operation        string         `json:"operation"`
	Description      string         `json:"description,omitempty"`
	Priority         Priority       `json:"priority"`
	Payload          map[string]any `json:"payload,omitempty"`
	RequiresApproval bool           `json:"requires_approval"`
	// ApprovalConfidenceThreshold overrides the manager-wide auto-approval
	// threshold for this action when set above zero.
	ApprovalConfidenceThreshold float64      `json:"approval_confidence_threshold"`
	MaxRetries                  int          `json:"max_retries"`
	TimeoutSeconds              int          `json:"timeout_seconds"`
	CreatedAt                   time.Time    `json:"created_at,omitzero"`
	Status                      ActionStatus `json:"status"`
}

// ApprovalStatus enumerates the lifecycle states of an approval request.
type ApprovalStatus string

const (
	ApprovalPending      ApprovalStatus = "pending"
	ApprovalApproved     ApprovalStatus = "approved"
	ApprovalRejected     ApprovalStatus = "rejected"
	ApprovalAutoApproved ApprovalStatus = "auto_approved"
	ApprovalEscalated    ApprovalStatus = "escalated"
)

// ApprovalRequest gates an action behind a human decision. ConfidenceScore
// records how certain the system was at creation time; requests above the
// auto-approval threshold never reach a human.
type ApprovalRequest struct {
	ID              string         `json:"id"`
	ActionID        string         `json:"action_id"`
	ExecutionID     string         `json:"execution_id,omitempty"`
	RequesterID     string         `json:"requester_id"`
	ApproverID      string         `json:"approver_id"`
	Description     string         `json:"description,omitempty"`
	Priority        Priority       `json:"priority"`
	Payload         map[string]any `json:"payload,omitempty"`
	ConfidenceScore float64        `json:"confidence_score"`
	Reasoning       string         `json:"reasoning,omitempty"`
	Status          ApprovalStatus `json:"status"`
	ResponseReason  string         `json:"response_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at,omitzero"`
	RespondedAt     *time.Time     `json:"responded_at,omitempty"`
}

// InboundEvent is a raw external event before classification.
type InboundEvent struct {
	ID         string         `json:"id"`
	Source     TriggerType    `json:"source"`
	UserID     string         `json:"user_id,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	ReceivedAt time.Time      `json:"received_at,omitzero"`
}
