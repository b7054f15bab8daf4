package editor

import (
	"context"

	"github.com/rendis/attackchain/internal/expressions"
	"github.com/rendis/attackchain/pkg/schema"
)

// GuardResult is the evaluation of one conditional edge.
type GuardResult struct {
	EdgeID     string `json:"edge_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Error      string `json:"error,omitempty"`
}

// Guards evaluates the guard of every conditional edge against the current
// state of its endpoints. An empty guard passes. Evaluation errors are
// reported per edge and never abort the pass.
func (e *Editor) Guards(ctx context.Context) []GuardResult {
	e.mu.Lock()
	defer e.unlock()

	chain := map[string]any{
		"id":            e.chainID,
		"name":          e.name,
		"node_count":    int64(e.stats.NodeCount),
		"edge_count":    int64(e.stats.EdgeCount),
		"total_minutes": int64(e.stats.TotalMinutes),
		"risk":          string(e.stats.RiskLevel),
		"verdict":       string(e.verdict),
	}

	var out []GuardResult
	for _, edge := range e.graph.Edges() {
		if edge.Type != schema.EdgeTypeConditional {
			continue
		}
		res := GuardResult{EdgeID: edge.ID, From: edge.From, To: edge.To, Expression: edge.Label, Passed: true}
		if edge.Label != "" {
			from, _ := e.graph.Node(edge.From)
			to, _ := e.graph.Node(edge.To)
			ok, err := e.cel.EvaluateGuard(ctx, edge.Label, map[string]any{
				"from":  expressions.NodeVars(from),
				"to":    expressions.NodeVars(to),
				"chain": chain,
			})
			res.Passed = ok
			if err != nil {
				res.Passed = false
				res.Error = err.Error()
			}
		}
		out = append(out, res)
	}
	return out
}
