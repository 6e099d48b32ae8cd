package triage

import "github.com/relayworks/relay/pkg/schema"

// escalationWindows is how quickly each category must reach a human,
// in minutes.
var escalationWindows = map[schema.Category]int{
	schema.CategoryUrgent:       5,
	schema.CategoryHighPriority: 30,
	schema.CategoryRoutine:      120,
	schema.CategoryLowPriority:  480,
}

// EscalationCompiler handles urgent-category events: immediate notification
// and manager escalation, executed without approval so nothing urgent waits
// on a human.
type EscalationCompiler struct{}

func NewEscalationCompiler() *EscalationCompiler { return &EscalationCompiler{} }

func (c *EscalationCompiler) Kind() schema.ActionKind { return schema.ActionEscalation }

func (c *EscalationCompiler) Compile(event schema.InboundEvent, cls schema.Classification) (*schema.Action, error) {
	window, ok := escalationWindows[cls.Category]
	if !ok {
		window = escalationWindows[schema.CategoryRoutine]
	}

	action := newAction(schema.ActionEscalation, "escalate", "Escalate urgent event", schema.PriorityCritical)
	action.RequiresApproval = false
	action.Payload["escalation_minutes"] = window
	action.Payload["next_steps"] = []string{
		"immediate_notification",
		"escalation_to_manager",
		"priority_handling",
	}
	action.Payload["user_id"] = event.UserID
	action.Payload["source"] = string(event.Source)
	action.Payload["matched_keywords"] = cls.MatchedKeywords
	return action, nil
}

// ResearchCompiler handles high-complexity events: a research task sized by
// the complexity score.
type ResearchCompiler struct{}

func NewResearchCompiler() *ResearchCompiler { return &ResearchCompiler{} }

func (c *ResearchCompiler) Kind() schema.ActionKind { return schema.ActionResearch }

func (c *ResearchCompiler) Compile(event schema.InboundEvent, cls schema.Classification) (*schema.Action, error) {
	action := newAction(schema.ActionResearch, "research_topic", "Research complex request", PriorityFor(cls.UrgencyScore))
	action.RequiresApproval = false
	action.Payload["complexity_score"] = cls.ComplexityScore
	action.Payload["user_id"] = event.UserID
	return action, nil
}

// DecisionCompiler is the fallback when no specific compiler matches. Low
// confidence, always gated behind approval.
type DecisionCompiler struct{}

func NewDecisionCompiler() *DecisionCompiler { return &DecisionCompiler{} }

func (c *DecisionCompiler) Kind() schema.ActionKind { return schema.ActionDecision }

func (c *DecisionCompiler) Compile(event schema.InboundEvent, cls schema.Classification) (*schema.Action, error) {
	action := newAction(schema.ActionDecision, "review_decision", "Review unclassified request", PriorityFor(cls.UrgencyScore))
	action.RequiresApproval = true
	action.Payload["category"] = string(cls.Category)
	action.Payload["urgency_score"] = cls.UrgencyScore
	action.Payload["user_id"] = event.UserID
	return action, nil
}
