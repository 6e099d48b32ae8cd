package validation

import (
	"errors"

	"github.com/relayworks/relay/pkg/schema"
)

// WorkflowValidator orchestrates the three-stage validation pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (connection refs, handler availability, conditions)
// 3. Graph (cycles, reachability from the trigger)
type WorkflowValidator struct {
	jsonSchema *JSONSchemaValidator
	handlers   HandlerLookup
}

// NewWorkflowValidator creates a WorkflowValidator.
// lookup may be nil to skip handler availability checks.
func NewWorkflowValidator(lookup HandlerLookup) (*WorkflowValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &WorkflowValidator{
		jsonSchema: jsv,
		handlers:   lookup,
	}, nil
}

// Validate runs the full 3-stage pipeline and returns an aggregated result.
// Structural errors short-circuit: semantic and graph stages are skipped.
func (wv *WorkflowValidator) Validate(def *schema.WorkflowDefinition) *schema.ValidationResult {
	if def == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "workflow definition is nil")
		return r
	}

	result := validateStructural(wv.jsonSchema, def)
	if !result.Valid() {
		return result
	}

	result.Merge(validateSemantic(def, wv.handlers))

	// Graph stage only runs on a semantically sound definition.
	if result.Valid() {
		result.Merge(validateDAG(def))
	}

	return result
}

// ValidateDefinition satisfies the Validator interface.
func (wv *WorkflowValidator) ValidateDefinition(def *schema.WorkflowDefinition) error {
	return wv.Validate(def).ToError()
}

// ValidatePayload delegates to the underlying JSONSchemaValidator.
func (wv *WorkflowValidator) ValidatePayload(payload map[string]any, payloadSchema []byte) error {
	return wv.jsonSchema.ValidatePayload(payload, payloadSchema)
}

// validateStructural wraps JSONSchemaValidator.ValidateDefinition,
// converting its error output into a ValidationResult.
func validateStructural(v *JSONSchemaValidator, def *schema.WorkflowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	err := v.ValidateDefinition(def)
	if err == nil {
		return result
	}

	var relayErr *schema.RelayError
	if !errors.As(err, &relayErr) {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}

	if relayErr.Details != nil {
		if violations, ok := relayErr.Details["violations"].([]string); ok {
			for _, violation := range violations {
				result.AddError("/", schema.ErrCodeValidation, violation)
			}
			return result
		}
	}
	result.AddError("/", schema.ErrCodeValidation, relayErr.Message)
	return result
}
