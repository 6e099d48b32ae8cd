package schema

// Event type constants for the execution event log.
const (
	EventExecutionStarted          = "execution_started"
	EventExecutionCompleted        = "execution_completed"
	EventExecutionFailed           = "execution_failed"
	EventExecutionCancelled        = "execution_cancelled"
	EventExecutionTimedOut         = "execution_timed_out"
	EventExecutionRetrying         = "execution_retrying"
	EventExecutionRedispatched     = "execution_redispatched"
	EventExecutionAwaitingApproval = "execution_awaiting_approval"
	EventExecutionResumed          = "execution_resumed"

	EventStepStarted   = "step_started"
	EventStepCompleted = "step_completed"
	EventStepFailed    = "step_failed"
	EventStepSkipped   = "step_skipped"

	EventApprovalRequested    = "approval_requested"
	EventApprovalAutoApproved = "approval_auto_approved"
	EventApprovalGranted      = "approval_granted"
	EventApprovalRejected     = "approval_rejected"

	EventTriggerFired    = "trigger_fired"
	EventEventClassified = "event_classified"
)

// ExecutionStatus represents the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusPending         ExecutionStatus = "pending"
	ExecutionStatusRunning         ExecutionStatus = "running"
	ExecutionStatusPendingApproval ExecutionStatus = "pending_approval"
	ExecutionStatusCompleted       ExecutionStatus = "completed"
	ExecutionStatusFailed          ExecutionStatus = "failed"
	ExecutionStatusTimeout         ExecutionStatus = "timeout"
	ExecutionStatusRetrying        ExecutionStatus = "retrying"
	ExecutionStatusCancelled       ExecutionStatus = "cancelled"
)

// StepStatus represents the lifecycle state of a step within an execution.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)
