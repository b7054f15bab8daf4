package diagram

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// RenderASCIIAuto renders through the mermaid-ascii binary in binDir when
// it exists, falling back to RenderASCII.
func RenderASCIIAuto(model *DiagramModel, binDir string) string {
	if binDir != "" {
		binPath := filepath.Join(binDir, "mermaid-ascii")
		if _, err := os.Stat(binPath); err == nil {
			result, err := RenderASCIIViaCLI(model, binPath)
			if err == nil {
				return result
			}
		}
	}
	return RenderASCII(model)
}

// RenderASCIIViaCLI pipes simplified Mermaid syntax through the mermaid-ascii binary.
func RenderASCIIViaCLI(model *DiagramModel, binPath string) (string, error) {
	mermaid := RenderMermaidForCLI(model)

	cmd := exec.Command(binPath)
	cmd.Stdin = strings.NewReader(mermaid)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("mermaid-ascii: %w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// RenderMermaidForCLI generates the Mermaid subset understood by the
// mermaid-ascii CLI: edges only, with node labels folded into the ids.
// Clusters are dropped and isolated nodes are emitted as bare ids.
func RenderMermaidForCLI(model *DiagramModel) string {
	var b strings.Builder
	b.WriteString("graph LR\n")

	displayID := make(map[string]string, len(model.Nodes))
	for _, node := range model.Nodes {
		displayID[node.ID] = cliNodeID(node)
	}
	resolve := func(id string) string {
		if d, ok := displayID[id]; ok {
			return d
		}
		return mermaidSafeID(id)
	}

	connected := make(map[string]bool, len(model.Nodes))
	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", mermaidEscapeLabel(edge.Label))
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n", resolve(edge.From), label, resolve(edge.To)))
		connected[edge.From] = true
		connected[edge.To] = true
	}
	for _, node := range model.Nodes {
		if !connected[node.ID] {
			b.WriteString(fmt.Sprintf("    %s\n", resolve(node.ID)))
		}
	}

	return b.String()
}

// cliNodeID builds a display ID for the mermaid-ascii CLI from the node
// label, severity and status.
func cliNodeID(node *Node) string {
	id := firstLine(node.Label)
	if id == "" {
		id = node.ID
	}
	// Drop the "3. " order prefix.
	if idx := strings.Index(id, ". "); idx > 0 {
		id = id[idx+2:]
	}

	if node.Severity != "" {
		id += "-" + strings.ToUpper(node.Severity[:1])
	}
	if tag := cliStatusTag(node.Status); tag != "" {
		id += "-" + tag
	}

	id = strings.NewReplacer(" ", "-", "\"", "", "|", "-", "(", "", ")", "").Replace(id)
	return id
}

// cliStatusTag returns a compact status indicator for node IDs.
func cliStatusTag(status string) string {
	switch status {
	case "completed":
		return "OK"
	case "error":
		return "FAIL"
	case "running":
		return "RUN"
	default:
		return ""
	}
}
