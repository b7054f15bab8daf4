package expressions

import "context"

// Engine evaluates expressions over chain data.
// Three implementations: CEL (edge guards), GoJQ (document queries), Expr
// (catalog filters).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
