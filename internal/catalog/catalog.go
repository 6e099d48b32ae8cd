// Package catalog ships the builtin workflow templates. Templates are
// complete workflow definitions with placeholder interpolation already
// wired; instantiating one produces a fresh definition ready to store.
package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/relayworks/relay/pkg/schema"
)

// Template describes one builtin workflow template.
type Template struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`

	build func() *schema.WorkflowDefinition
}

// Definition returns a fresh copy of the template's workflow definition.
// The copy carries the template's stable ID and is disabled.
func (t Template) Definition() *schema.WorkflowDefinition {
	return t.build()
}

// Instantiate produces a storable workflow from the template: new ID,
// fresh timestamps, enabled. An empty name keeps the template's name.
func (t Template) Instantiate(name string) *schema.WorkflowDefinition {
	def := t.build()
	def.ID = uuid.NewString()
	if name != "" {
		def.Name = name
	}
	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now
	def.Enabled = true
	return def
}

// Builtin returns all templates in a stable order.
func Builtin() []Template {
	return []Template{emailToTask(), meetingFollowUp(), salesLead()}
}

// Get looks a template up by slug.
func Get(slug string) (Template, bool) {
	for _, t := range Builtin() {
		if t.Slug == slug {
			return t, true
		}
	}
	return Template{}, false
}

func emailToTask() Template {
	return Template{
		Slug:        "email-to-task",
		Name:        "Email to Task",
		Description: "Create a tracked task from important emails and notify the team",
		build: func() *schema.WorkflowDefinition {
			return &schema.WorkflowDefinition{
				ID:          "email-to-task-template",
				Name:        "Email to Task",
				Description: "Create a tracked task from important emails and notify the team",
				Trigger: schema.Trigger{
					ID:      "email-trigger",
					Type:    schema.TriggerEmailReceived,
					Name:    "Email Received",
					Config:  map[string]any{"filters": []any{"important", "urgent"}},
					Enabled: true,
				},
				Steps: []schema.Step{
					{
						ID:   "create-task",
						Type: schema.StepCreateTask,
						Name: "Create Task",
						Config: map[string]any{
							"project":     "Inbox",
							"name":        "${{ trigger.subject }}",
							"description": "${{ trigger.body }}",
						},
						Conditions: []schema.Condition{
							{Field: "subject", Operator: schema.OpContains, Value: "action"},
						},
					},
					{
						ID:   "notify-team",
						Type: schema.StepSendNotification,
						Name: "Notify Team",
						Config: map[string]any{
							"channel": "tasks",
							"message": "New task created: ${{ steps.create-task.task_id }}",
						},
					},
				},
				Connections: []schema.Connection{
					{ID: "conn-1", FromID: "email-trigger", ToID: "create-task"},
					{ID: "conn-2", FromID: "create-task", ToID: "notify-team"},
				},
			}
		},
	}
}

func meetingFollowUp() Template {
	return Template{
		Slug:        "meeting-followup",
		Name:        "Meeting Follow-up",
		Description: "Summarize a finished meeting, file action items and mail the summary",
		build: func() *schema.WorkflowDefinition {
			return &schema.WorkflowDefinition{
				ID:          "meeting-followup-template",
				Name:        "Meeting Follow-up",
				Description: "Summarize a finished meeting, file action items and mail the summary",
				Trigger: schema.Trigger{
					ID:      "meeting-trigger",
					Type:    schema.TriggerScheduled,
					Name:    "Meeting Ended",
					Config:  map[string]any{"cron": "0 17 * * 1-5"},
					Enabled: true,
				},
				Steps: []schema.Step{
					{
						ID:   "summarize",
						Type: schema.StepTransform,
						Name: "Generate Summary",
						Config: map[string]any{
							"expression": `{summary: ("Summary of " + .meeting_title), action_items: (.action_items // [])}`,
						},
					},
					{
						ID:   "create-action-items",
						Type: schema.StepCreateTask,
						Name: "Create Action Items",
						Config: map[string]any{
							"project":     "Meeting Follow-ups",
							"name":        "${{ trigger.meeting_title }} action items",
							"description": "${{ steps.summarize.summary }}",
						},
					},
					{
						ID:   "send-summary",
						Type: schema.StepSendEmail,
						Name: "Send Summary",
						Config: map[string]any{
							"to":      []any{"${{ trigger.organizer }}"},
							"subject": "Summary: ${{ trigger.meeting_title }}",
							"body":    "${{ steps.summarize.summary }}",
						},
					},
				},
				Connections: []schema.Connection{
					{ID: "conn-1", FromID: "meeting-trigger", ToID: "summarize"},
					{ID: "conn-2", FromID: "summarize", ToID: "create-action-items"},
					{ID: "conn-3", FromID: "create-action-items", ToID: "send-summary"},
				},
			}
		},
	}
}

func salesLead() Template {
	return Template{
		Slug:        "sales-lead",
		Name:        "Sales Lead Processing",
		Description: "Track inbound leads, schedule a sales call and send a welcome mail",
		build: func() *schema.WorkflowDefinition {
			return &schema.WorkflowDefinition{
				ID:          "sales-lead-template",
				Name:        "Sales Lead Processing",
				Description: "Track inbound leads, schedule a sales call and send a welcome mail",
				Trigger: schema.Trigger{
					ID:      "lead-trigger",
					Type:    schema.TriggerEmailReceived,
					Name:    "Lead Email",
					Config:  map[string]any{"filters": []any{"lead", "inquiry", "quote"}},
					Enabled: true,
				},
				Steps: []schema.Step{
					{
						ID:   "create-lead-task",
						Type: schema.StepCreateTask,
						Name: "Create Lead Task",
						Config: map[string]any{
							"project":     "Sales Pipeline",
							"name":        "Lead: ${{ trigger.subject }}",
							"description": "${{ trigger.body }}",
							"assignee":    "sales",
						},
						// Enterprise leads get a pipeline task; others skip
						// straight to the call and welcome mail.
						Conditions: []schema.Condition{
							{Field: "subject", Operator: schema.OpContains, Value: "enterprise"},
						},
					},
					{
						ID:   "schedule-call",
						Type: schema.StepScheduleEvent,
						Name: "Schedule Follow-up Call",
						Config: map[string]any{
							"title":     "Sales call: ${{ trigger.subject }}",
							"start":     "${{ trigger.requested_start }}",
							"duration":  "30m",
							"attendees": []any{"${{ trigger.from }}"},
						},
					},
					{
						ID:   "send-welcome",
						Type: schema.StepSendEmail,
						Name: "Send Welcome",
						Config: map[string]any{
							"to":      []any{"${{ trigger.from }}"},
							"subject": "Thanks for reaching out",
							"body":    "We received your inquiry and a follow-up call is being scheduled.",
						},
					},
				},
				Connections: []schema.Connection{
					{ID: "conn-1", FromID: "lead-trigger", ToID: "create-lead-task"},
					{ID: "conn-2", FromID: "create-lead-task", ToID: "schedule-call"},
					{ID: "conn-3", FromID: "schedule-call", ToID: "send-welcome"},
				},
			}
		},
	}
}
