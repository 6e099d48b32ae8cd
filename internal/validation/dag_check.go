package validation

import (
	"fmt"
	"sort"

	"github.com/relayworks/relay/pkg/schema"
)

// validateDAG performs graph analysis over the connections: cycle detection
// (Kahn's algorithm) and reachability from the trigger (BFS). Connections
// with unresolved endpoints are ignored here; semantic catches those.
func validateDAG(def *schema.WorkflowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	stepIDs := make(map[string]bool, len(def.Steps))
	for _, s := range def.Steps {
		stepIDs[s.ID] = true
	}

	// out[from] = successors, inDegree counts edges between steps only.
	out := make(map[string][]string, len(def.Steps))
	inDegree := make(map[string]int, len(def.Steps))
	for id := range stepIDs {
		inDegree[id] = 0
	}
	fromTrigger := make([]string, 0)

	seen := make(map[[2]string]bool, len(def.Connections))
	for _, conn := range def.Connections {
		if !stepIDs[conn.ToID] {
			continue
		}
		if conn.FromID == def.Trigger.ID {
			fromTrigger = append(fromTrigger, conn.ToID)
			continue
		}
		if !stepIDs[conn.FromID] {
			continue
		}
		key := [2]string{conn.FromID, conn.ToID}
		if seen[key] {
			continue // parallel edges count once for the topology
		}
		seen[key] = true
		out[conn.FromID] = append(out[conn.FromID], conn.ToID)
		inDegree[conn.ToID]++
	}

	// Kahn's algorithm for cycle detection.
	queue := make([]string, 0, len(def.Steps))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	// Sort roots for deterministic output.
	sort.Strings(queue)

	visited := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range out[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(stepIDs) {
		result.AddError("connections", schema.ErrCodeCycleDetected,
			"workflow contains a connection cycle")
		return result // cycle makes reachability analysis meaningless
	}

	// Reachability: BFS from the trigger's outgoing connections.
	reachable := make(map[string]bool, len(stepIDs))
	bfsQueue := make([]string, 0, len(fromTrigger))
	for _, id := range fromTrigger {
		if !reachable[id] {
			reachable[id] = true
			bfsQueue = append(bfsQueue, id)
		}
	}

	for len(bfsQueue) > 0 {
		node := bfsQueue[0]
		bfsQueue = bfsQueue[1:]
		for _, next := range out[node] {
			if !reachable[next] {
				reachable[next] = true
				bfsQueue = append(bfsQueue, next)
			}
		}
	}

	for _, s := range def.Steps {
		if !reachable[s.ID] {
			result.AddWarning(fmt.Sprintf("steps[%s]", s.ID),
				schema.ErrCodeValidation,
				fmt.Sprintf("step %q is unreachable from the trigger", s.ID))
		}
	}

	return result
}
