package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayworks/relay/pkg/schema"
)

func TestValidateSemantic_Clean(t *testing.T) {
	result := validateSemantic(validDefinition(), allHandlers())
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestValidateSemantic_TriggerIDCollidesWithStep(t *testing.T) {
	def := validDefinition()
	def.Trigger.ID = "notify"

	result := validateSemantic(def, allHandlers())
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0].Message, "collides")
}

func TestValidateSemantic_ConnectionFromUnknownNode(t *testing.T) {
	def := validDefinition()
	def.Connections[1].FromID = "ghost"

	result := validateSemantic(def, allHandlers())
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0].Message, `"ghost"`)
}

func TestValidateSemantic_ConnectionToUnknownStep(t *testing.T) {
	def := validDefinition()
	def.Connections[1].ToID = "ghost"

	result := validateSemantic(def, allHandlers())
	assert.False(t, result.Valid())
}

func TestValidateSemantic_ConnectionCannotTargetTrigger(t *testing.T) {
	def := validDefinition()
	def.Connections[1].ToID = "trigger"

	result := validateSemantic(def, allHandlers())
	require.False(t, result.Valid())

	found := false
	for _, issue := range result.Errors {
		if issue.Message == "connections cannot target the trigger" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateSemantic_UnregisteredStepType(t *testing.T) {
	def := validDefinition()
	lookup := fakeLookup{schema.StepSendNotification: true} // create_task missing

	result := validateSemantic(def, lookup)
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0].Message, "no handler registered")
}

func TestValidateSemantic_NilLookupSkipsHandlerChecks(t *testing.T) {
	def := validDefinition()
	result := validateSemantic(def, nil)
	assert.True(t, result.Valid())
}

func TestValidateSemantic_WebhookRequiresURL(t *testing.T) {
	def := validDefinition()
	def.Steps = append(def.Steps, schema.Step{
		ID:     "hook",
		Type:   schema.StepWebhookCall,
		Config: map[string]any{"method": "POST"},
	})

	result := validateSemantic(def, allHandlers())
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0].Message, "config.url")
}

func TestValidateSemantic_TransformRequiresExpression(t *testing.T) {
	def := validDefinition()
	def.Steps = append(def.Steps, schema.Step{
		ID:     "shape",
		Type:   schema.StepTransform,
		Config: map[string]any{},
	})

	result := validateSemantic(def, allHandlers())
	assert.False(t, result.Valid())
}

func TestValidateSemantic_ComputeWithExpressionsMapOK(t *testing.T) {
	def := validDefinition()
	def.Steps = append(def.Steps, schema.Step{
		ID:   "calc",
		Type: schema.StepCompute,
		Config: map[string]any{
			"expressions": map[string]any{"total": "a + b"},
		},
	})

	result := validateSemantic(def, allHandlers())
	assert.True(t, result.Valid())
}

func TestValidateSemantic_LongTimeoutWarns(t *testing.T) {
	def := validDefinition()
	def.Steps[0].TimeoutSeconds = 7200

	result := validateSemantic(def, allHandlers())
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "exceeds one hour")
}

func TestValidateCondition_ExpressionAlone(t *testing.T) {
	result := &schema.ValidationResult{}
	validateCondition(&schema.Condition{Expression: "priority == 'high'"}, "guard", result)
	assert.True(t, result.Valid())
}

func TestValidateCondition_MissingOperatorAndExpression(t *testing.T) {
	result := &schema.ValidationResult{}
	validateCondition(&schema.Condition{Field: "priority"}, "guard", result)
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0].Message, "operator or an expression")
}

func TestValidateCondition_UnknownOperatorWarns(t *testing.T) {
	result := &schema.ValidationResult{}
	validateCondition(&schema.Condition{
		Field:    "priority",
		Operator: "resembles",
		Value:    "high",
	}, "guard", result)

	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "always evaluates to false")
}

func TestValidateCondition_OperatorWithoutField(t *testing.T) {
	result := &schema.ValidationResult{}
	validateCondition(&schema.Condition{Operator: schema.OpEquals, Value: 1}, "guard", result)
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0].Message, "requires a field")
}

func TestValidateSemantic_GuardOnConnection(t *testing.T) {
	def := validDefinition()
	def.Connections[1].Guard = &schema.Condition{Operator: schema.OpEquals}

	result := validateSemantic(def, allHandlers())
	assert.False(t, result.Valid())
}
