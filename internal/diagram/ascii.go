package diagram

import (
	"fmt"
	"strings"
)

// statusTag returns a short ASCII indicator for a node status.
func statusTag(status string) string {
	switch status {
	case "completed":
		return "[OK]"
	case "error":
		return "[FAIL]"
	case "running":
		return "[RUN]"
	case "pending":
		return "[PEND]"
	default:
		return ""
	}
}

// severityTag returns a compact severity marker.
func severityTag(severity string) string {
	switch severity {
	case "critical":
		return "!!!"
	case "high":
		return "!!"
	case "medium":
		return "!"
	default:
		return ""
	}
}

// RenderASCII renders a DiagramModel as a text-based ASCII diagram.
// It uses a level-based layout with box-drawing characters; each level
// is one row of boxes.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("=== %s ===\n", model.Title))
	}
	if model.Summary != "" {
		b.WriteString(model.Summary)
		b.WriteByte('\n')
	}
	if model.Title != "" || model.Summary != "" {
		b.WriteByte('\n')
	}

	for levelIdx, level := range model.Levels {
		var boxes []asciiBox
		for _, nodeID := range level {
			node := findNode(model.Nodes, nodeID)
			if node == nil {
				continue
			}
			boxes = append(boxes, makeBox(node))
		}

		renderBoxRow(&b, boxes)

		if levelIdx < len(model.Levels)-1 {
			renderConnector(&b, len(boxes))
		}
	}

	if model.Cyclic {
		b.WriteString("\n(cycle detected: levels follow node order)\n")
	}

	if len(model.Edges) > 0 {
		b.WriteString("\n--- connections ---\n")
		for _, edge := range model.Edges {
			label := ""
			if edge.Label != "" {
				label = " [" + edge.Label + "]"
			}
			b.WriteString(fmt.Sprintf("  %s ─→ %s%s\n", nodeName(model, edge.From), nodeName(model, edge.To), label))
		}
	}

	return b.String()
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

// makeBox creates an ASCII box for a node.
func makeBox(node *Node) asciiBox {
	contentLines := []string{firstLine(node.Label)}

	detail := node.Minutes
	if tag := severityTag(node.Severity); tag != "" {
		detail = tag + " " + detail
	}
	if tag := statusTag(node.Status); tag != "" && node.Status != "pending" {
		detail += " " + tag
	}
	contentLines = append(contentLines, detail)

	maxLen := 0
	for _, line := range contentLines {
		if n := len([]rune(line)); n > maxLen {
			maxLen = n
		}
	}
	width := maxLen + 4 // 2 border + 2 padding

	var lines []string
	top := "┌" + strings.Repeat("─", width-2) + "┐"
	bot := "└" + strings.Repeat("─", width-2) + "┘"
	lines = append(lines, top)
	for _, content := range contentLines {
		padded := content + strings.Repeat(" ", maxLen-len([]rune(content)))
		lines = append(lines, "│ "+padded+" │")
	}
	lines = append(lines, bot)

	return asciiBox{lines: lines, width: width}
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	if len(boxes) == 0 {
		return
	}

	maxHeight := 0
	for _, box := range boxes {
		if len(box.lines) > maxHeight {
			maxHeight = len(box.lines)
		}
	}

	for row := 0; row < maxHeight; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

// renderConnector draws a vertical connector between levels.
func renderConnector(b *strings.Builder, boxCount int) {
	if boxCount == 0 {
		return
	}
	b.WriteString("       │\n")
	b.WriteString("       ▼\n")
}

// nodeName returns the label of a node, or its id when unknown.
func nodeName(model *DiagramModel, id string) string {
	if n := findNode(model.Nodes, id); n != nil {
		return firstLine(n.Label)
	}
	return id
}

// findNode looks up a node by ID in the model's node list.
func findNode(nodes []*Node, id string) *Node {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
