package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/relayworks/relay/internal/triage"
	"github.com/relayworks/relay/pkg/schema"
)

// Seeded action workflows: one small workflow per action kind. Compiled
// actions run as executions of these, with the action payload as the
// trigger payload.

// ActionWorkflowID returns the stable workflow id for an action kind.
func ActionWorkflowID(kind schema.ActionKind) string {
	return "relay-action-" + string(kind)
}

// EnsureActionWorkflows creates any missing per-kind workflows. Existing
// definitions are left untouched; they are immutable once created.
func (o *Orchestrator) EnsureActionWorkflows(ctx context.Context) error {
	for _, def := range actionWorkflows() {
		existing, err := o.store.GetWorkflow(ctx, def.ID)
		if err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "check action workflow %s: %s", def.ID, err.Error()).WithCause(err)
		}
		if existing != nil {
			continue
		}
		if err := o.store.CreateWorkflow(ctx, def); err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "seed action workflow %s: %s", def.ID, err.Error()).WithCause(err)
		}
		o.logger.InfoContext(ctx, "seeded action workflow", "workflow_id", def.ID)
	}
	return nil
}

func actionWorkflows() []*schema.WorkflowDefinition {
	return []*schema.WorkflowDefinition{
		actionWorkflow(schema.ActionScheduling, "Scheduling", []schema.Step{
			{
				ID:   "scheduling-task",
				Type: schema.StepCreateTask,
				Name: "File Scheduling Task",
				Config: map[string]any{
					"project":     "Scheduling",
					"name":        "Schedule ${{ trigger.meeting_type }} meeting",
					"description": "Duration ${{ trigger.duration_minutes }} minutes, respond within ${{ trigger.max_wait_hours }} hours",
					"assignee":    "${{ trigger.user_id }}",
				},
			},
			{
				ID:   "notify-requester",
				Type: schema.StepSendNotification,
				Name: "Notify Requester",
				Config: map[string]any{
					"recipient": "${{ trigger.user_id }}",
					"message":   "Scheduling request queued: ${{ trigger.meeting_type }} (${{ trigger.duration_minutes }} min)",
				},
			},
		}),
		actionWorkflow(schema.ActionFollowUp, "Follow-up", []schema.Step{
			{
				ID:   "followup-task",
				Type: schema.StepCreateTask,
				Name: "File Follow-up",
				Config: map[string]any{
					"project":     "Follow-ups",
					"name":        "${{ trigger.subject }}",
					"description": "Send in ${{ trigger.delay_hours }} hours, remind after ${{ trigger.reminder_hours }} hours",
					"assignee":    "${{ trigger.user_id }}",
				},
			},
			{
				ID:   "confirm-followup",
				Type: schema.StepSendNotification,
				Name: "Confirm Follow-up",
				Config: map[string]any{
					"recipient": "${{ trigger.user_id }}",
					"message":   "Follow-up scheduled: ${{ trigger.subject }}",
				},
			},
		}),
		actionWorkflow(schema.ActionEscalation, "Escalation", []schema.Step{
			{
				ID:   "alert-oncall",
				Type: schema.StepSendNotification,
				Name: "Alert On-call",
				Config: map[string]any{
					"channel": "escalations",
					"message": "Escalation from ${{ trigger.user_id }}, response window ${{ trigger.escalation_minutes }} minutes",
				},
			},
			{
				ID:   "escalation-task",
				Type: schema.StepCreateTask,
				Name: "File Escalation",
				Config: map[string]any{
					"project":     "Escalations",
					"name":        "Escalation from ${{ trigger.user_id }}",
					"description": "Source: ${{ trigger.source }}",
				},
			},
		}),
		actionWorkflow(schema.ActionResearch, "Research", []schema.Step{
			{
				ID:   "research-task",
				Type: schema.StepCreateTask,
				Name: "File Research Request",
				Config: map[string]any{
					"project":     "Research",
					"name":        "Research request from ${{ trigger.user_id }}",
					"description": "Complexity score ${{ trigger.complexity_score }}",
				},
			},
		}),
		actionWorkflow(schema.ActionDecision, "Decision", []schema.Step{
			{
				ID:   "decision-task",
				Type: schema.StepCreateTask,
				Name: "File Decision",
				Config: map[string]any{
					"project":     "Decisions",
					"name":        "Decision needed for ${{ trigger.user_id }}",
					"description": "Category: ${{ trigger.category }}, urgency ${{ trigger.urgency_score }}",
				},
			},
			{
				ID:   "notify-decision",
				Type: schema.StepSendNotification,
				Name: "Notify Requester",
				Config: map[string]any{
					"recipient": "${{ trigger.user_id }}",
					"message":   "Your request was filed for a decision",
				},
			},
		}),
		actionWorkflow(schema.ActionTriage, "Triage", []schema.Step{
			{
				ID:   "triage-receipt",
				Type: schema.StepSendNotification,
				Name: "Acknowledge",
				Config: map[string]any{
					"recipient": "${{ trigger.user_id }}",
					"message":   "Your input was triaged",
				},
			},
		}),
	}
}

// actionWorkflow builds a linear workflow over the given steps with a
// manual trigger, connecting trigger -> steps in order.
func actionWorkflow(kind schema.ActionKind, name string, steps []schema.Step) *schema.WorkflowDefinition {
	id := ActionWorkflowID(kind)
	def := &schema.WorkflowDefinition{
		ID:          id,
		Name:        name + " Action",
		Description: "Runs compiled " + string(kind) + " actions",
		Trigger: schema.Trigger{
			ID:      id + "-trigger",
			Type:    schema.TriggerManual,
			Name:    "Action Dispatch",
			Enabled: true,
		},
		Steps:     steps,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	// Every step inherits the action kind's timeout budget.
	timeout := triage.ActionTimeoutSeconds(kind)
	for i := range def.Steps {
		def.Steps[i].TimeoutSeconds = timeout
	}

	from := def.Trigger.ID
	for i, step := range steps {
		def.Connections = append(def.Connections, schema.Connection{
			ID:     fmt.Sprintf("%s-conn-%d", id, i+1),
			FromID: from,
			ToID:   step.ID,
		})
		from = step.ID
	}
	return def
}
