package handlers

import (
	"context"
	"encoding/json"

	"github.com/relayworks/relay/internal/expressions"
	"github.com/relayworks/relay/pkg/schema"
)

// TransformHandler implements the transform step: reshapes the execution
// context with a jq expression. Context-only, no external call.
type TransformHandler struct {
	engine *expressions.GoJQEngine
}

func NewTransformHandler() *TransformHandler {
	return &TransformHandler{engine: expressions.NewGoJQEngine()}
}

func (h *TransformHandler) Type() schema.StepType { return schema.StepTransform }

func (h *TransformHandler) Validate(config map[string]any) error {
	if stringParam(config, "expression", "") == "" {
		return schema.NewError(schema.ErrCodeValidation, "transform: missing required config 'expression'")
	}
	return nil
}

func (h *TransformHandler) Execute(ctx context.Context, input Input) (*Output, error) {
	if err := h.Validate(input.Config); err != nil {
		return nil, err
	}
	expression := stringParam(input.Config, "expression", "")

	result, err := h.engine.Evaluate(ctx, expression, input.Context)
	if err != nil {
		return nil, err
	}

	// Objects merge into the context as-is; scalars and arrays land under
	// a named key so the output stays a JSON object.
	var out any
	if obj, ok := result.(map[string]any); ok {
		out = obj
	} else {
		key := stringParam(input.Config, "as", "result")
		out = map[string]any{key: result}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "transform: marshal output").WithCause(err)
	}
	return &Output{Data: data}, nil
}
