package triage

import (
	"strings"

	"github.com/relayworks/relay/pkg/schema"
)

// Router picks the compiler for a classified event and runs it. The routing
// order is fixed: urgent events always escalate, then scheduling, follow-up,
// research by complexity, and the approval-gated decision fallback.
type Router struct {
	classifier *Classifier
	scheduling *SchedulingCompiler
	followUp   *FollowUpCompiler
	escalation *EscalationCompiler
	research   *ResearchCompiler
	decision   *DecisionCompiler
}

func NewRouter() *Router {
	return &Router{
		classifier: NewClassifier(),
		scheduling: NewSchedulingCompiler(),
		followUp:   NewFollowUpCompiler(),
		escalation: NewEscalationCompiler(),
		research:   NewResearchCompiler(),
		decision:   NewDecisionCompiler(),
	}
}

// Triage classifies the event and compiles it into an action.
func (r *Router) Triage(event schema.InboundEvent) (schema.Classification, *schema.Action, error) {
	cls := r.classifier.Classify(event.Content)
	compiler := r.Route(event, cls)
	action, err := compiler.Compile(event, cls)
	if err != nil {
		return cls, nil, err
	}
	return cls, action, nil
}

// Route picks the compiler without running it.
func (r *Router) Route(event schema.InboundEvent, cls schema.Classification) Compiler {
	lower := strings.ToLower(event.Content)

	switch {
	case cls.Category == schema.CategoryUrgent:
		return r.escalation
	case strings.Contains(lower, "schedule") || strings.Contains(lower, "meeting"):
		return r.scheduling
	case containsKeyword(cls.MatchedKeywords, "follow up") || containsKeyword(cls.MatchedKeywords, "check"):
		return r.followUp
	case cls.ComplexityScore > 2:
		return r.research
	default:
		return r.decision
	}
}

func containsKeyword(keywords []string, want string) bool {
	for _, k := range keywords {
		if k == want {
			return true
		}
	}
	return false
}
