package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// ImageFormat is an output format supported by RenderImage.
type ImageFormat string

const (
	FormatPNG ImageFormat = "png"
	FormatSVG ImageFormat = "svg"
)

// RenderImage renders a DiagramModel with graphviz and returns the encoded
// image bytes.
func RenderImage(ctx context.Context, model *DiagramModel, format ImageFormat) ([]byte, error) {
	var gvFormat graphviz.Format
	switch format {
	case FormatPNG, "":
		gvFormat = graphviz.PNG
	case FormatSVG:
		gvFormat = graphviz.SVG
	default:
		return nil, fmt.Errorf("diagram: unsupported image format %q", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.LRRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	// Clustered nodes are created inside their subgraph.
	gvNodes := make(map[string]*cgraph.Node, len(model.Nodes))
	for _, c := range model.Clusters {
		sub, subErr := graph.CreateSubGraphByName("cluster_" + c.Label)
		if subErr != nil {
			continue
		}
		sub.SetLabel(c.Label)
		sub.SetStyle(cgraph.DashedGraphStyle)
		for _, id := range c.NodeIDs {
			node := findNode(model.Nodes, id)
			if node == nil {
				continue
			}
			gvNode, nErr := sub.CreateNodeByName(node.ID)
			if nErr != nil {
				return nil, fmt.Errorf("diagram: create node %s: %w", node.ID, nErr)
			}
			applyNodeStyle(gvNode, node)
			gvNodes[node.ID] = gvNode
		}
	}

	for _, node := range model.Nodes {
		if _, ok := gvNodes[node.ID]; ok {
			continue
		}
		gvNode, nErr := graph.CreateNodeByName(node.ID)
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", node.ID, nErr)
		}
		applyNodeStyle(gvNode, node)
		gvNodes[node.ID] = gvNode
	}

	for _, edge := range model.Edges {
		fromGV, toGV := gvNodes[edge.From], gvNodes[edge.To]
		if fromGV == nil || toGV == nil {
			continue
		}
		e, eErr := graph.CreateEdgeByName("", fromGV, toGV)
		if eErr != nil {
			continue
		}
		if edge.Label != "" {
			e.SetLabel(edge.Label)
		}
		switch edge.Type {
		case "error":
			e.SetColor("#8b1a1a")
			e.SetStyle(cgraph.DashedEdgeStyle)
		case "success":
			e.SetColor("#2d6a2d")
		case "conditional":
			e.SetStyle(cgraph.DashedEdgeStyle)
		case "parallel":
			e.SetStyle(cgraph.BoldEdgeStyle)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render %s: %w", format, err)
	}

	return buf.Bytes(), nil
}

// applyNodeStyle sets graphviz attributes based on node kind and severity.
func applyNodeStyle(gvNode *cgraph.Node, node *Node) {
	label := firstLine(node.Label) + "\n" + node.Minutes
	if tag := statusTag(node.Status); tag != "" && node.Status != "pending" {
		label += " " + tag
	}
	gvNode.SetLabel(label)

	switch node.Kind {
	case NodeKindEntry:
		gvNode.SetShape(cgraph.EllipseShape)
	case NodeKindObjective:
		gvNode.SetShape(cgraph.HexagonShape)
	case NodeKindIsolated:
		gvNode.SetShape(cgraph.DiamondShape)
	default:
		gvNode.SetShape(cgraph.BoxShape)
	}

	applySeverityColor(gvNode, node.Severity)
}

// applySeverityColor sets fill color and style based on severity.
func applySeverityColor(gvNode *cgraph.Node, severity string) {
	gvNode.SetStyle(cgraph.FilledNodeStyle)
	switch severity {
	case "critical":
		gvNode.SetFillColor("#8b1a1a")
		gvNode.SetFontColor("white")
	case "high":
		gvNode.SetFillColor("#b7791a")
		gvNode.SetFontColor("white")
	case "medium":
		gvNode.SetFillColor("#1a5276")
		gvNode.SetFontColor("white")
	case "low":
		gvNode.SetFillColor("#2d6a2d")
		gvNode.SetFontColor("white")
	default:
		gvNode.SetFillColor("#d3d3d3")
		gvNode.SetFontColor("black")
	}
}
