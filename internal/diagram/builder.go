package diagram

import (
	"fmt"
	"sort"

	"github.com/rendis/attackchain/internal/graph"
	"github.com/rendis/attackchain/internal/stats"
	"github.com/rendis/attackchain/pkg/schema"
)

// BuildOption configures Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	clusters bool
}

// WithClusters groups nodes by template category.
func WithClusters() BuildOption { return func(c *buildConfig) { c.clusters = true } }

// Build constructs a DiagramModel from a chain document. It uses
// graph.Analyze for topology; a chain with a cycle is laid out one node
// per level in node order and flagged Cyclic.
func Build(doc *schema.ChainDocument, opts ...BuildOption) (*DiagramModel, error) {
	if doc == nil {
		return nil, fmt.Errorf("diagram: nil document")
	}
	var cfg buildConfig
	for _, o := range opts {
		o(&cfg)
	}

	nodes := append([]schema.Node(nil), doc.Nodes...)
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Order < nodes[j].Order })

	dag, err := graph.Analyze(nodes, doc.Edges)
	cyclic := false
	if err != nil {
		if !schema.IsCode(err, schema.ErrCodeCycleDetected) {
			return nil, fmt.Errorf("diagram: analyze chain: %w", err)
		}
		cyclic = true
	}

	model := &DiagramModel{
		Title:  titleFromDoc(doc),
		Cyclic: cyclic,
	}
	for i := range nodes {
		model.Nodes = append(model.Nodes, toNode(&nodes[i], dag))
	}
	model.Edges = buildEdges(doc.Edges)
	model.Levels = buildLevels(nodes, dag, cyclic)
	if cfg.clusters {
		model.Clusters = buildClusters(model.Nodes)
	}

	st := stats.Compute(nodes, doc.Edges)
	model.Summary = fmt.Sprintf("%d techniques, %s, risk %s", st.NodeCount, st.Duration, st.RiskLevel)
	return model, nil
}

func toNode(n *schema.Node, dag *graph.DAG) *Node {
	return &Node{
		ID:       n.ID,
		Label:    nodeLabel(n),
		Kind:     nodeKind(n.ID, dag),
		Category: n.Template.Category,
		Severity: string(n.Template.Severity),
		Status:   string(n.Status),
		Minutes:  fmt.Sprintf("%d-%dm", n.Template.EstimatedTime.Min, n.Template.EstimatedTime.Max),
	}
}

// nodeKind derives the kind from the node's in and out degree.
func nodeKind(id string, dag *graph.DAG) NodeKind {
	in, out := len(dag.Preds[id]), len(dag.Succs[id])
	switch {
	case in == 0 && out == 0:
		return NodeKindIsolated
	case in == 0:
		return NodeKindEntry
	case out == 0:
		return NodeKindObjective
	default:
		return NodeKindStep
	}
}

// nodeLabel creates a human-readable label for a node.
func nodeLabel(n *schema.Node) string {
	name := n.Template.Name
	if name == "" {
		name = n.Template.ID
	}
	if name == "" {
		name = n.ID
	}
	return fmt.Sprintf("%d. %s", n.Order, name)
}

func buildEdges(edges []schema.Edge) []Edge {
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		label := e.Label
		if label == "" && e.Type != schema.EdgeTypeDefault && e.Type != "" {
			label = string(e.Type)
		}
		out = append(out, Edge{From: e.From, To: e.To, Type: string(e.Type), Label: label})
	}
	return out
}

func buildLevels(nodes []schema.Node, dag *graph.DAG, cyclic bool) [][]string {
	if !cyclic {
		return dag.Levels
	}
	levels := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		levels = append(levels, []string{n.ID})
	}
	return levels
}

// buildClusters groups nodes by category; categories are sorted and
// uncategorized nodes stay outside any cluster.
func buildClusters(nodes []*Node) []*Cluster {
	byCategory := make(map[string]*Cluster)
	for _, n := range nodes {
		if n.Category == "" {
			continue
		}
		c, ok := byCategory[n.Category]
		if !ok {
			c = &Cluster{Label: n.Category}
			byCategory[n.Category] = c
		}
		c.NodeIDs = append(c.NodeIDs, n.ID)
	}
	out := make([]*Cluster, 0, len(byCategory))
	for _, c := range byCategory {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func titleFromDoc(doc *schema.ChainDocument) string {
	if doc.Name != "" {
		return doc.Name
	}
	return "Attack Chain"
}
