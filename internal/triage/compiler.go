package triage

import (
	"time"

	"github.com/google/uuid"
	"github.com/relayworks/relay/pkg/schema"
)

// Compiler turns a classified event into one concrete Action. Compilers are
// pure mappings over static rule tables; they never call external systems.
// The produced Action only names the operation and carries a payload for the
// step handlers to act on later.
type Compiler interface {
	Kind() schema.ActionKind
	Compile(event schema.InboundEvent, cls schema.Classification) (*schema.Action, error)
}

// defaultApprovalThreshold is the per-action auto-approval bar compilers
// stamp on every action.
const defaultApprovalThreshold = 0.8

// actionTimeouts bounds the handler work dispatched for each action kind.
var actionTimeouts = map[schema.ActionKind]int{
	schema.ActionTriage:     60,
	schema.ActionScheduling: 120,
	schema.ActionFollowUp:   300,
	schema.ActionEscalation: 60,
	schema.ActionDecision:   300,
	schema.ActionResearch:   600,
}

// ActionTimeoutSeconds returns the step timeout budget for an action kind.
func ActionTimeoutSeconds(kind schema.ActionKind) int {
	if t, ok := actionTimeouts[kind]; ok {
		return t
	}
	return 300
}

func newAction(kind schema.ActionKind, operation, description string, priority schema.Priority) *schema.Action {
	return &schema.Action{
		ID:                          uuid.NewString(),
		Kind:                        kind,
		Operation:                   operation,
		Description:                 description,
		Priority:                    priority,
		Payload:                     make(map[string]any),
		ApprovalConfidenceThreshold: defaultApprovalThreshold,
		TimeoutSeconds:              ActionTimeoutSeconds(kind),
		CreatedAt:                   time.Now().UTC(),
		Status:                      schema.ActionStatusPending,
	}
}
