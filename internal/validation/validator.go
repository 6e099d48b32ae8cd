package validation

import "github.com/relayworks/relay/pkg/schema"

// Validator checks workflow definitions and trigger payloads at the API
// boundary, before any execution record is created.
// Uses JSON Schema Draft 2020-12 for structural validation.
type Validator interface {
	ValidateDefinition(def *schema.WorkflowDefinition) error
	ValidatePayload(payload map[string]any, payloadSchema []byte) error
}

// HandlerLookup answers whether a step type has a registered handler.
// Satisfied by *handlers.Registry.
type HandlerLookup interface {
	Has(stepType schema.StepType) bool
}
