package validation

import "github.com/rendis/attackchain/pkg/schema"

// Verdict is the coarse structural health check shown next to the canvas:
// error with no nodes, warning with several nodes and no edges, valid
// otherwise (a single unconnected node is valid).
func Verdict(nodes []schema.Node, edges []schema.Edge) schema.Verdict {
	switch {
	case len(nodes) == 0:
		return schema.VerdictError
	case len(nodes) > 1 && len(edges) == 0:
		return schema.VerdictWarning
	default:
		return schema.VerdictValid
	}
}

// DocumentValidator checks imported chain documents before they are loaded.
type DocumentValidator interface {
	ValidateJSON(data []byte) error
	ValidateDocument(doc *schema.ChainDocument) error
}

// GuardCompiler compiles conditional-edge guard expressions.
type GuardCompiler interface {
	CompileGuard(expression string) error
}
