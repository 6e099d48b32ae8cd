package engine

import (
	"fmt"

	"github.com/relayworks/relay/pkg/schema"
)

// Graph is the in-memory representation of a workflow's step topology.
// Built from a WorkflowDefinition, used by the Executor to walk the
// guarded connections from the trigger through the steps.
type Graph struct {
	Steps    map[string]*schema.Step        // step ID -> definition
	Outgoing map[string][]schema.Connection // node ID -> outgoing connections, declaration order
	Entry    []schema.Connection            // connections leaving the trigger, declaration order
	Sorted   []string                       // topological order of step IDs
}

// validStepTypes is the set of recognized step types.
var validStepTypes = map[schema.StepType]bool{
	schema.StepSendNotification: true,
	schema.StepCreateTask:       true,
	schema.StepUpdateTask:       true,
	schema.StepSendMessage:      true,
	schema.StepSendEmail:        true,
	schema.StepScheduleEvent:    true,
	schema.StepWebhookCall:      true,
	schema.StepDelay:            true,
	schema.StepTransform:        true,
	schema.StepCompute:          true,
}

// ParseGraph parses a WorkflowDefinition into an executable Graph.
// It validates the definition, indexes the connections preserving their
// declaration order, and rejects cyclic topologies so the walker always
// terminates.
func ParseGraph(def *schema.WorkflowDefinition) (*Graph, error) {
	if def == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow definition is nil")
	}

	if len(def.Steps) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow has no steps")
	}

	if def.Trigger.ID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow trigger has empty ID")
	}

	g := &Graph{
		Steps:    make(map[string]*schema.Step, len(def.Steps)),
		Outgoing: make(map[string][]schema.Connection, len(def.Steps)),
	}

	// First pass: register all steps and check for duplicates.
	for i := range def.Steps {
		step := &def.Steps[i]

		if step.ID == "" {
			return nil, schema.NewError(schema.ErrCodeValidation, fmt.Sprintf("step at index %d has empty ID", i))
		}

		if step.ID == def.Trigger.ID {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "step %s shares its ID with the trigger", step.ID)
		}

		if _, exists := g.Steps[step.ID]; exists {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "duplicate step ID: %s", step.ID)
		}

		if !validStepTypes[step.Type] {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "step %s has unknown type: %s", step.ID, step.Type)
		}

		g.Steps[step.ID] = step
	}

	// Second pass: index connections in declaration order and validate endpoints.
	for i, conn := range def.Connections {
		if conn.ToID == "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "connection at index %d has empty target", i)
		}
		if _, exists := g.Steps[conn.ToID]; !exists {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "connection %s targets non-existent step: %s", conn.ID, conn.ToID)
		}

		if conn.FromID == def.Trigger.ID {
			g.Entry = append(g.Entry, conn)
			continue
		}

		if _, exists := g.Steps[conn.FromID]; !exists {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "connection %s originates from non-existent step: %s", conn.ID, conn.FromID)
		}
		if conn.FromID == conn.ToID {
			return nil, schema.NewErrorf(schema.ErrCodeCycleDetected, "connection %s loops step %s onto itself", conn.ID, conn.FromID)
		}

		g.Outgoing[conn.FromID] = append(g.Outgoing[conn.FromID], conn)
	}

	if len(g.Entry) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow has no connection from the trigger")
	}

	// Kahn's algorithm over step-to-step connections: topological sort + cycle detection.
	inDegree := make(map[string]int, len(g.Steps))
	for id := range g.Steps {
		inDegree[id] = 0
	}
	for _, conns := range g.Outgoing {
		for _, conn := range conns {
			inDegree[conn.ToID]++
		}
	}

	queue := make([]string, 0)
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	// Sort roots for deterministic ordering.
	sortStrings(queue)

	sorted := make([]string, 0, len(g.Steps))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		sorted = append(sorted, node)

		next := make([]string, 0, len(g.Outgoing[node]))
		for _, conn := range g.Outgoing[node] {
			next = append(next, conn.ToID)
		}
		sortStrings(next)

		for _, dep := range next {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(sorted) != len(g.Steps) {
		return nil, schema.NewError(schema.ErrCodeCycleDetected, "workflow contains a cycle")
	}

	g.Sorted = sorted

	return g, nil
}

// sortStrings sorts a slice of strings in-place using insertion sort.
// Used for small slices to avoid importing sort package.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		key := s[i]
		j := i - 1
		for j >= 0 && s[j] > key {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = key
	}
}
