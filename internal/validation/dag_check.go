package validation

import (
	"fmt"
	"strings"

	"github.com/rendis/attackchain/internal/graph"
	"github.com/rendis/attackchain/pkg/schema"
)

// checkGraph performs graph analysis: missing and isolated connections,
// cycle detection (Kahn) and prerequisite coverage along upstream paths.
func checkGraph(nodes []schema.Node, edges []schema.Edge) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if len(nodes) > 1 {
		if len(edges) == 0 {
			result.AddWarning("edges", CodeNoEdges, "chain has several nodes but no connections")
		} else {
			touched := make(map[string]bool, len(nodes))
			for _, e := range edges {
				touched[e.From] = true
				touched[e.To] = true
			}
			for _, n := range nodes {
				if !touched[n.ID] {
					result.AddWarning(nodePath(n.ID), CodeIsolatedNode,
						fmt.Sprintf("node %q (%s) is not connected", n.ID, n.Template.Name))
				}
			}
		}
	}

	dag, err := graph.Analyze(nodes, edges)
	if err != nil {
		var stuck []string
		if ce, ok := err.(*schema.ChainError); ok {
			stuck, _ = ce.Details["nodes"].([]string)
		}
		result.AddWarning("edges", schema.ErrCodeCycleDetected,
			fmt.Sprintf("chain contains a dependency cycle through %s", strings.Join(stuck, ", ")))
		return result // upstream sets are meaningless on a cycle
	}

	templateOf := make(map[string]string, len(nodes))
	for _, n := range nodes {
		templateOf[n.ID] = n.Template.ID
	}
	for _, n := range nodes {
		if len(n.Template.Prerequisites) == 0 {
			continue
		}
		provided := make(map[string]bool)
		for up := range dag.Upstream(n.ID) {
			provided[templateOf[up]] = true
		}
		for _, req := range n.Template.Prerequisites {
			if !provided[req] {
				result.AddWarning(nodePath(n.ID), CodeUnmetPrereq,
					fmt.Sprintf("node %q requires %q upstream", n.ID, req))
			}
		}
	}

	return result
}
