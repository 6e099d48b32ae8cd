package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/relayworks/relay/internal/expressions"
	"github.com/relayworks/relay/pkg/schema"
)

// ConditionEvaluator evaluates step conditions and connection guards
// against an execution scope. Field conditions resolve dotted paths in
// the merged execution context; conditions carrying an Expression are
// delegated to the expression engine instead.
type ConditionEvaluator struct {
	engine expressions.Engine
}

// NewConditionEvaluator creates an evaluator backed by the given
// expression engine. The engine may be nil, in which case conditions
// with an Expression evaluate to false.
func NewConditionEvaluator(engine expressions.Engine) *ConditionEvaluator {
	return &ConditionEvaluator{engine: engine}
}

// Evaluate resolves a single condition against the scope.
// An unknown operator evaluates to false rather than failing the walk.
func (e *ConditionEvaluator) Evaluate(ctx context.Context, cond *schema.Condition, scope *expressions.ScopeBuilder) (bool, error) {
	if cond == nil {
		return true, nil
	}

	if cond.Expression != "" {
		if e.engine == nil {
			return false, nil
		}
		result, err := e.engine.Evaluate(ctx, cond.Expression, scope.Build())
		if err != nil {
			return false, err
		}
		return truthy(result), nil
	}

	value, found := expressions.LookupPath(scope.Context(), cond.Field)
	if !found {
		value = nil
	}

	switch cond.Operator {
	case schema.OpEquals:
		return looseEqual(value, cond.Value), nil
	case schema.OpNotEquals:
		return !looseEqual(value, cond.Value), nil
	case schema.OpContains:
		return containsValue(value, cond.Value), nil
	case schema.OpNotContains:
		return !containsValue(value, cond.Value), nil
	case schema.OpGreaterThan:
		return compareNumeric(value, cond.Value, func(a, b float64) bool { return a > b }), nil
	case schema.OpLessThan:
		return compareNumeric(value, cond.Value, func(a, b float64) bool { return a < b }), nil
	case schema.OpGreaterOrEqual:
		return compareNumeric(value, cond.Value, func(a, b float64) bool { return a >= b }), nil
	case schema.OpLessOrEqual:
		return compareNumeric(value, cond.Value, func(a, b float64) bool { return a <= b }), nil
	case schema.OpIsEmpty:
		return isEmpty(value), nil
	case schema.OpIsNotEmpty:
		return !isEmpty(value), nil
	default:
		return false, nil
	}
}

// EvaluateAll reports whether every condition holds. An empty list holds.
func (e *ConditionEvaluator) EvaluateAll(ctx context.Context, conds []schema.Condition, scope *expressions.ScopeBuilder) (bool, error) {
	for i := range conds {
		ok, err := e.Evaluate(ctx, &conds[i], scope)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// PickConnection returns the first connection in declaration order whose
// guard holds. Unguarded connections always match. Returns nil when no
// connection matches.
func (e *ConditionEvaluator) PickConnection(ctx context.Context, conns []schema.Connection, scope *expressions.ScopeBuilder) (*schema.Connection, error) {
	for i := range conns {
		ok, err := e.Evaluate(ctx, conns[i].Guard, scope)
		if err != nil {
			return nil, err
		}
		if ok {
			return &conns[i], nil
		}
	}
	return nil, nil
}

// truthy converts an expression result to a boolean following the same
// rules as guard evaluation: booleans as-is, everything else by emptiness.
func truthy(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return !isEmpty(v)
}

// looseEqual compares two values tolerating numeric type drift from JSON
// decoding, so 5 equals 5.0.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, oka := toFloat(a); oka {
		if fb, okb := toFloat(b); okb {
			return fa == fb
		}
		return false
	}
	if sa, oka := a.(string); oka {
		if sb, okb := b.(string); okb {
			return sa == sb
		}
		return false
	}
	if ba, oka := a.(bool); oka {
		if bb, okb := b.(bool); okb {
			return ba == bb
		}
		return false
	}
	return false
}

func containsValue(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		n, ok := needle.(string)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(h), strings.ToLower(n))
	case []any:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func compareNumeric(a, b any, cmp func(a, b float64) bool) bool {
	fa, oka := toFloat(a)
	fb, okb := toFloat(b)
	if !oka || !okb {
		return false
	}
	return cmp(fa, fb)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
