package triage

import (
	"time"

	"github.com/relayworks/relay/pkg/schema"
)

// followUpTiming holds the delay/reminder rule for one priority level.
type followUpTiming struct {
	delayHours    int
	reminderHours int
}

var followUpTimings = map[schema.Priority]followUpTiming{
	schema.PriorityCritical: {2, 24},
	schema.PriorityHigh:     {24, 72},
	schema.PriorityMedium:   {72, 168},
	schema.PriorityLow:      {168, 336},
}

// Follow-up subject patterns by context type. The metadata key names the
// event field that fills the subject; resolution happens at compile time.
var followUpSubjects = map[string]struct {
	prefix      string
	metadataKey string
}{
	"meeting": {"Follow-up: ", "meeting_title"},
	"task":    {"Task Update: ", "task_name"},
	"general": {"Follow-up: ", "topic"},
}

// FollowUpCompiler maps a follow-up context to a create_follow_up action
// with timing from the static table.
type FollowUpCompiler struct{}

func NewFollowUpCompiler() *FollowUpCompiler { return &FollowUpCompiler{} }

func (c *FollowUpCompiler) Kind() schema.ActionKind { return schema.ActionFollowUp }

func (c *FollowUpCompiler) Compile(event schema.InboundEvent, cls schema.Classification) (*schema.Action, error) {
	contextType := "general"
	if ct, ok := event.Metadata["type"].(string); ok {
		if _, known := followUpSubjects[ct]; known {
			contextType = ct
		}
	}

	priority := schema.PriorityMedium
	requiresApproval := false
	switch event.Metadata["urgency"] {
	case "urgent":
		priority = schema.PriorityHigh
	case "critical":
		priority = schema.PriorityCritical
		requiresApproval = true
	}

	timing, ok := followUpTimings[priority]
	if !ok {
		timing = followUpTimings[schema.PriorityMedium]
	}

	action := newAction(schema.ActionFollowUp, "create_follow_up",
		"Follow up on "+contextType, priority)
	action.RequiresApproval = requiresApproval
	action.Payload["context_type"] = contextType
	action.Payload["subject"] = followUpSubject(contextType, event)
	action.Payload["delay_hours"] = timing.delayHours
	action.Payload["reminder_hours"] = timing.reminderHours
	action.Payload["scheduled_at"] = time.Now().UTC().
		Add(time.Duration(timing.delayHours) * time.Hour).Format(time.RFC3339)
	action.Payload["user_id"] = event.UserID
	if recipients, ok := event.Metadata["participants"]; ok {
		action.Payload["recipients"] = recipients
	}
	return action, nil
}

// followUpSubject fills the context type's subject pattern from event
// metadata, falling back to the event subject and then the context type.
func followUpSubject(contextType string, event schema.InboundEvent) string {
	tmpl := followUpSubjects[contextType]
	topic := contextType
	if event.Subject != "" {
		topic = event.Subject
	}
	if v, ok := event.Metadata[tmpl.metadataKey].(string); ok && v != "" {
		topic = v
	}
	return tmpl.prefix + topic
}
