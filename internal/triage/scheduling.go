package triage

import (
	"strings"

	"github.com/relayworks/relay/pkg/schema"
)

// meetingType holds the duration rule for one recognized meeting kind.
type meetingType struct {
	name     string
	keywords []string
	minutes  int
}

// Checked in order; first match wins.
var meetingTypes = []meetingType{
	{"interview", []string{"interview"}, 60},
	{"presentation", []string{"presentation"}, 45},
	{"brainstorming", []string{"brainstorm"}, 60},
	{"quick", []string{"quick", "brief"}, 15},
	{"detailed", []string{"detailed"}, 90},
}

const defaultMeetingMinutes = 30

// maxWaitHours bounds how long a scheduling action may sit unserved.
var maxWaitHours = map[schema.Priority]int{
	schema.PriorityCritical: 2,
	schema.PriorityHigh:     24,
	schema.PriorityMedium:   72,
	schema.PriorityLow:      168,
}

// SchedulingCompiler maps a scheduling request to a schedule_meeting action:
// meeting type and duration from the keyword table, priority and wait bound
// from the urgency wording.
type SchedulingCompiler struct{}

func NewSchedulingCompiler() *SchedulingCompiler { return &SchedulingCompiler{} }

func (c *SchedulingCompiler) Kind() schema.ActionKind { return schema.ActionScheduling }

func (c *SchedulingCompiler) Compile(event schema.InboundEvent, cls schema.Classification) (*schema.Action, error) {
	lower := strings.ToLower(event.Content)

	name := "general"
	minutes := defaultMeetingMinutes
	for _, mt := range meetingTypes {
		if containsAny(lower, mt.keywords) {
			name = mt.name
			minutes = mt.minutes
			break
		}
	}

	priority := schema.PriorityMedium
	requiresApproval := false
	if strings.Contains(lower, "urgent") || strings.Contains(lower, "asap") {
		priority = schema.PriorityCritical
	} else if strings.Contains(lower, "important") {
		priority = schema.PriorityHigh
	}

	var constraints []string
	if strings.Contains(lower, "morning") {
		constraints = append(constraints, "morning_only")
	}
	if strings.Contains(lower, "afternoon") {
		constraints = append(constraints, "afternoon_only")
	}
	if strings.Contains(lower, "this week") {
		constraints = append(constraints, "this_week")
	}

	action := newAction(schema.ActionScheduling, "schedule_meeting",
		"Schedule "+name+" meeting", priority)
	action.RequiresApproval = requiresApproval
	action.Payload["meeting_type"] = name
	action.Payload["duration_minutes"] = minutes
	action.Payload["max_wait_hours"] = maxWaitHours[priority]
	action.Payload["user_id"] = event.UserID
	action.Payload["source"] = string(event.Source)
	if len(constraints) > 0 {
		action.Payload["constraints"] = constraints
	}
	if participants, ok := event.Metadata["participants"]; ok {
		action.Payload["participants"] = participants
	}
	return action, nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
