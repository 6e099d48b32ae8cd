package expressions

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/relayworks/relay/pkg/schema"
)

// ScopeBuilder constructs execution scopes for expression evaluation and
// condition checks. It enforces:
//   - Step outputs are immutable after completion (frozen on insert).
//   - Append-only: new step outputs are added as the walk advances.
//   - Workflow variables never shadow trigger payload keys in the merged
//     context: the payload is applied last.
type ScopeBuilder struct {
	mu        sync.RWMutex
	trigger   map[string]any // trigger payload (immutable after init)
	variables map[string]any // workflow variables (immutable after init)
	steps     map[string]any // step ID -> frozen output (deep-copied on insert)
}

// NewScopeBuilder creates a ScopeBuilder initialized with the trigger payload
// and workflow variables. Both are deep-copied to prevent external mutation.
func NewScopeBuilder(trigger, variables map[string]any) *ScopeBuilder {
	return &ScopeBuilder{
		trigger:   deepCopyMap(trigger),
		variables: deepCopyMap(variables),
		steps:     make(map[string]any),
	}
}

// AddStepOutput registers a completed step's output. The output is frozen
// (deep-copied) at the time of insertion. Subsequent calls with the same stepID
// are rejected: step outputs are immutable after completion.
func (sb *ScopeBuilder) AddStepOutput(stepID string, output json.RawMessage) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if _, exists := sb.steps[stepID]; exists {
		return schema.NewErrorf(schema.ErrCodeInterpolation,
			"step %q output already registered; step outputs are immutable after completion", stepID)
	}

	if len(output) == 0 {
		sb.steps[stepID] = nil
		return nil
	}

	var parsed any
	if err := json.Unmarshal(output, &parsed); err != nil {
		return schema.NewErrorf(schema.ErrCodeInterpolation,
			"cannot parse step %q output: %s", stepID, err.Error())
	}

	// Deep-copy to freeze the value.
	sb.steps[stepID] = deepCopyAny(parsed)
	return nil
}

// Context returns the merged execution context: workflow variables overlaid
// with the trigger payload (payload keys win), plus every step output merged
// under its step ID.
func (sb *ScopeBuilder) Context() map[string]any {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	merged := make(map[string]any, len(sb.variables)+len(sb.trigger)+len(sb.steps))
	for k, v := range sb.variables {
		merged[k] = deepCopyAny(v)
	}
	for k, v := range sb.trigger {
		merged[k] = deepCopyAny(v)
	}
	for id, out := range sb.steps {
		merged[id] = deepCopyAny(out)
	}
	return merged
}

// Build creates the evaluation data map for expression engines. The returned
// map is safe for concurrent use (all data is copied).
func (sb *ScopeBuilder) Build() map[string]any {
	sb.mu.RLock()
	trigger := deepCopyMap(sb.trigger)
	variables := deepCopyMap(sb.variables)
	steps := deepCopyMap(sb.steps)
	sb.mu.RUnlock()

	return map[string]any{
		"trigger":   trigger,
		"context":   sb.Context(),
		"steps":     steps,
		"variables": variables,
	}
}

// StepOutputs returns a read-only copy of the current step outputs.
func (sb *ScopeBuilder) StepOutputs() map[string]any {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return deepCopyMap(sb.steps)
}

// LookupPath navigates a dot-delimited path into nested maps, starting at
// root. Returns the value and true on success; false when any segment is
// missing or traverses a non-object.
func LookupPath(root map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	// Direct key lookup first (supports keys containing dots).
	if v, ok := root[path]; ok {
		return v, true
	}

	var current any = root
	for _, seg := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// --- Deep copy utilities ---

// deepCopyMap creates a deep copy of a map[string]any.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = deepCopyAny(v)
	}
	return cp
}

// deepCopyAny recursively deep-copies a value.
// Handles maps, slices, and primitives (which are inherently immutable).
func deepCopyAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cp := make([]any, len(val))
		for i, item := range val {
			cp[i] = deepCopyAny(item)
		}
		return cp
	case json.RawMessage:
		if val == nil {
			return nil
		}
		cp := make(json.RawMessage, len(val))
		copy(cp, val)
		return cp
	default:
		// Primitives (string, float64, bool, nil, int, int64) are value types.
		return v
	}
}
