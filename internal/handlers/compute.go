package handlers

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/relayworks/relay/internal/expressions"
	"github.com/relayworks/relay/pkg/schema"
)

// ComputeHandler implements the compute step: evaluates expr-lang
// expressions over the execution context and emits the computed values.
// Context-only, no external call.
type ComputeHandler struct {
	engine *expressions.ExprEngine
}

func NewComputeHandler() *ComputeHandler {
	return &ComputeHandler{engine: expressions.NewExprEngine()}
}

func (h *ComputeHandler) Type() schema.StepType { return schema.StepCompute }

func (h *ComputeHandler) Validate(config map[string]any) error {
	if stringParam(config, "expression", "") != "" {
		return nil
	}
	if exprs, ok := config["expressions"].(map[string]any); ok && len(exprs) > 0 {
		return nil
	}
	return schema.NewError(schema.ErrCodeValidation,
		"compute: requires config 'expression' or a non-empty 'expressions' map")
}

func (h *ComputeHandler) Execute(ctx context.Context, input Input) (*Output, error) {
	if err := h.Validate(input.Config); err != nil {
		return nil, err
	}

	out := make(map[string]any)

	if single := stringParam(input.Config, "expression", ""); single != "" {
		result, err := h.engine.Evaluate(ctx, single, input.Context)
		if err != nil {
			return nil, err
		}
		out[stringParam(input.Config, "as", "value")] = result
	}

	if exprs, ok := input.Config["expressions"].(map[string]any); ok {
		// Deterministic evaluation order.
		names := make([]string, 0, len(exprs))
		for name := range exprs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			expression, ok := exprs[name].(string)
			if !ok {
				return nil, schema.NewErrorf(schema.ErrCodeValidation,
					"compute: expression %q is not a string", name)
			}
			result, err := h.engine.Evaluate(ctx, expression, input.Context)
			if err != nil {
				return nil, err
			}
			out[name] = result
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "compute: marshal output").WithCause(err)
	}
	return &Output{Data: data}, nil
}
