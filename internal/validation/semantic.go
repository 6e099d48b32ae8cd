package validation

import (
	"fmt"

	"github.com/relayworks/relay/pkg/schema"
)

var knownOperators = map[schema.Operator]bool{
	schema.OpEquals:         true,
	schema.OpNotEquals:      true,
	schema.OpContains:       true,
	schema.OpNotContains:    true,
	schema.OpGreaterThan:    true,
	schema.OpLessThan:       true,
	schema.OpGreaterOrEqual: true,
	schema.OpLessOrEqual:    true,
	schema.OpIsEmpty:        true,
	schema.OpIsNotEmpty:     true,
}

// validateSemantic checks the references the JSON Schema cannot see:
// connection endpoints resolve, step types have handlers, guards and
// conditions are evaluable.
func validateSemantic(def *schema.WorkflowDefinition, lookup HandlerLookup) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	stepIDs := make(map[string]bool, len(def.Steps))
	for _, s := range def.Steps {
		stepIDs[s.ID] = true
	}

	if stepIDs[def.Trigger.ID] {
		result.AddError("trigger.id", schema.ErrCodeValidation,
			fmt.Sprintf("trigger id %q collides with a step id", def.Trigger.ID))
	}

	for i := range def.Steps {
		validateStepSemantic(&def.Steps[i], fmt.Sprintf("steps[%d]", i), lookup, result)
	}

	for i, conn := range def.Connections {
		path := fmt.Sprintf("connections[%d]", i)
		if conn.FromID != def.Trigger.ID && !stepIDs[conn.FromID] {
			result.AddError(path+".from_id", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent node %q", conn.FromID))
		}
		if !stepIDs[conn.ToID] {
			result.AddError(path+".to_id", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent step %q", conn.ToID))
		}
		if conn.ToID == def.Trigger.ID {
			result.AddError(path+".to_id", schema.ErrCodeValidation,
				"connections cannot target the trigger")
		}
		if conn.Guard != nil {
			validateCondition(conn.Guard, path+".guard", result)
		}
	}

	return result
}

// validateStepSemantic checks a single step.
func validateStepSemantic(step *schema.Step, path string, lookup HandlerLookup, result *schema.ValidationResult) {
	if lookup != nil && !lookup.Has(step.Type) {
		result.AddError(path+".type", schema.ErrCodeValidation,
			fmt.Sprintf("no handler registered for step type %q", step.Type))
	}

	for j := range step.Conditions {
		validateCondition(&step.Conditions[j], fmt.Sprintf("%s.conditions[%d]", path, j), result)
	}

	// Boundary checks for configs whose absence is knowable before
	// interpolation. Value-level validation happens at dispatch.
	switch step.Type {
	case schema.StepWebhookCall:
		if _, ok := step.Config["url"]; !ok {
			result.AddError(path+".config.url", schema.ErrCodeValidation,
				"webhook_call step requires config.url")
		}
	case schema.StepTransform, schema.StepCompute:
		_, hasExpr := step.Config["expression"]
		_, hasExprs := step.Config["expressions"]
		if !hasExpr && !hasExprs {
			result.AddError(path+".config.expression", schema.ErrCodeValidation,
				fmt.Sprintf("%s step requires config.expression", step.Type))
		}
	}

	// Warning: very long step timeouts usually indicate a missing delay step.
	if step.TimeoutSeconds > 3600 {
		result.AddWarning(path+".timeout_seconds", schema.ErrCodeValidation,
			fmt.Sprintf("step timeout of %ds exceeds one hour", step.TimeoutSeconds))
	}
}

// validateCondition checks that a guard or step condition is evaluable.
// Unknown operators evaluate to false at runtime, so they are flagged as
// warnings rather than errors.
func validateCondition(cond *schema.Condition, path string, result *schema.ValidationResult) {
	if cond.Expression != "" {
		return
	}
	if cond.Operator == "" {
		result.AddError(path, schema.ErrCodeValidation,
			"condition requires an operator or an expression")
		return
	}
	if !knownOperators[cond.Operator] {
		result.AddWarning(path+".operator", schema.ErrCodeValidation,
			fmt.Sprintf("unknown operator %q always evaluates to false", cond.Operator))
	}
	if cond.Field == "" {
		result.AddError(path+".field", schema.ErrCodeValidation,
			"condition with an operator requires a field")
	}
}
