package diagram

import (
	"fmt"

	"github.com/relayworks/relay/internal/store"
	"github.com/relayworks/relay/pkg/schema"
)

// FromDefinition builds a diagram model from a workflow definition.
// Step records, when given, overlay runtime status onto the step nodes.
func FromDefinition(def *schema.WorkflowDefinition, records map[string]*store.StepRecord) *Model {
	model := &Model{Title: def.Name}

	model.Nodes = append(model.Nodes, &Node{
		ID:    def.Trigger.ID,
		Label: triggerLabel(def.Trigger),
		Kind:  NodeKindTrigger,
	})

	for _, step := range def.Steps {
		node := &Node{
			ID:    step.ID,
			Label: stepLabel(step),
			Kind:  kindFor(step.Type),
		}
		if rec, ok := records[step.ID]; ok {
			node.Status = &StatusOverlay{
				Status:     string(rec.Status),
				DurationMs: rec.DurationMs,
				Error:      rec.Error,
			}
		}
		model.Nodes = append(model.Nodes, node)
	}

	for _, conn := range def.Connections {
		model.Edges = append(model.Edges, Edge{
			From:  conn.FromID,
			To:    conn.ToID,
			Label: guardLabel(conn.Guard),
		})
	}

	return model
}

func triggerLabel(trig schema.Trigger) string {
	if trig.Name != "" {
		return trig.Name
	}
	return string(trig.Type)
}

func stepLabel(step schema.Step) string {
	if step.Name != "" {
		return step.Name
	}
	return step.ID
}

func kindFor(t schema.StepType) NodeKind {
	switch t {
	case schema.StepCreateTask, schema.StepUpdateTask:
		return NodeKindTask
	case schema.StepSendNotification, schema.StepSendMessage, schema.StepSendEmail:
		return NodeKindMessage
	case schema.StepScheduleEvent:
		return NodeKindEvent
	case schema.StepTransform, schema.StepCompute:
		return NodeKindData
	case schema.StepWebhookCall:
		return NodeKindWebhook
	case schema.StepDelay:
		return NodeKindDelay
	default:
		return NodeKindTask
	}
}

// guardLabel summarizes a connection guard for the edge label.
func guardLabel(guard *schema.Condition) string {
	if guard == nil {
		return ""
	}
	if guard.Expression != "" {
		return guard.Expression
	}
	switch guard.Operator {
	case schema.OpIsEmpty, schema.OpIsNotEmpty:
		return fmt.Sprintf("%s %s", guard.Field, guard.Operator)
	default:
		return fmt.Sprintf("%s %s %v", guard.Field, guard.Operator, guard.Value)
	}
}
