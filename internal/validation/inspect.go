package validation

import (
	"fmt"

	"github.com/rendis/attackchain/pkg/schema"
)

// Issue codes reported by Inspect beyond the shared error codes.
const (
	CodeEmptyChain      = "EMPTY_CHAIN"
	CodeNoEdges         = "NO_EDGES"
	CodeIsolatedNode    = "ISOLATED_NODE"
	CodeUnmetPrereq     = "UNMET_PREREQUISITE"
	CodeEmptyGuard      = "EMPTY_GUARD"
	CodeInvalidGuard    = "INVALID_GUARD"
	CodeUnknownSeverity = "UNKNOWN_SEVERITY"
)

// Inspect produces a detailed advisory report for a chain snapshot. It runs
// in stages: guards and node data first, then graph analysis. guards may be
// nil to skip guard compilation.
//
// Inspect never changes Verdict; it explains it and adds graph-level
// findings the coarse verdict ignores.
func Inspect(nodes []schema.Node, edges []schema.Edge, guards GuardCompiler) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if len(nodes) == 0 {
		result.AddError("nodes", CodeEmptyChain, "chain has no nodes")
		return result
	}

	result.Merge(checkNodes(nodes))
	result.Merge(checkGuards(edges, guards))
	result.Merge(checkGraph(nodes, edges))
	return result
}

func checkNodes(nodes []schema.Node) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	for _, n := range nodes {
		if !n.Template.Severity.IsValid() {
			result.AddWarning(nodePath(n.ID), CodeUnknownSeverity,
				fmt.Sprintf("node %q has unknown severity %q", n.ID, n.Template.Severity))
		}
	}
	return result
}

func checkGuards(edges []schema.Edge, guards GuardCompiler) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	for _, e := range edges {
		if e.Type != schema.EdgeTypeConditional {
			continue
		}
		if e.Label == "" {
			result.AddWarning(edgePath(e.ID), CodeEmptyGuard,
				fmt.Sprintf("conditional edge %s -> %s has no guard", e.From, e.To))
			continue
		}
		if guards == nil {
			continue
		}
		if err := guards.CompileGuard(e.Label); err != nil {
			result.AddError(edgePath(e.ID), CodeInvalidGuard,
				fmt.Sprintf("guard %q does not compile: %v", e.Label, err))
		}
	}
	return result
}

func nodePath(id string) string { return fmt.Sprintf("nodes[%s]", id) }
func edgePath(id string) string { return fmt.Sprintf("edges[%s]", id) }
