package expressions

import "context"

// Engine evaluates expressions against an execution scope.
// Three implementations: CEL (guards), GoJQ (transforms), Expr (computed values).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
