package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph LR\n")

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}
	if model.Summary != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Summary))
	}

	clustered := make(map[string]bool)
	for _, c := range model.Clusters {
		b.WriteString(fmt.Sprintf("    subgraph %s[%q]\n", mermaidSafeID("cluster_"+c.Label), c.Label))
		for _, id := range c.NodeIDs {
			if node := findNode(model.Nodes, id); node != nil {
				b.WriteString(fmt.Sprintf("        %s\n", mermaidNodeDef(node)))
				clustered[id] = true
			}
		}
		b.WriteString("    end\n")
	}
	for _, node := range model.Nodes {
		if !clustered[node.ID] {
			b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))
		}
	}

	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", mermaidEscapeLabel(edge.Label))
		}
		b.WriteString(fmt.Sprintf("    %s %s%s %s\n",
			mermaidSafeID(edge.From), mermaidArrow(edge.Type), label, mermaidSafeID(edge.To)))
	}

	b.WriteString("\n")
	b.WriteString("    classDef critical fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")
	b.WriteString("    classDef high fill:#b7791a,stroke:#8a5c14,color:#fff\n")
	b.WriteString("    classDef medium fill:#1a5276,stroke:#0e3a52,color:#fff\n")
	b.WriteString("    classDef low fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")

	for _, node := range model.Nodes {
		if cls := mermaidSeverityClass(node.Severity); cls != "" {
			b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(node.ID), cls))
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := mermaidEscapeLabel(node.Label)

	switch node.Kind {
	case NodeKindEntry:
		return fmt.Sprintf("%s([%q])", id, label)
	case NodeKindObjective:
		return fmt.Sprintf("%s{{%q}}", id, label)
	case NodeKindIsolated:
		return fmt.Sprintf("%s[/%q/]", id, label)
	default:
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidArrow picks the link style for an edge type.
func mermaidArrow(edgeType string) string {
	switch edgeType {
	case "error":
		return "-.->"
	case "conditional":
		return "-.->"
	case "parallel":
		return "==>"
	default:
		return "-->"
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
// Replaces dots and dashes with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

// mermaidEscapeLabel strips characters that break Mermaid label syntax.
func mermaidEscapeLabel(s string) string {
	r := strings.NewReplacer("\"", "'", "|", "/", "\n", " ")
	return r.Replace(s)
}

func mermaidSeverityClass(severity string) string {
	switch severity {
	case "critical", "high", "medium", "low":
		return severity
	default:
		return ""
	}
}
