package diagram

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBuild(t *testing.T, opts ...BuildOption) *DiagramModel {
	t.Helper()
	model, err := Build(webChain(), opts...)
	require.NoError(t, err)
	return model
}

func TestRenderMermaid(t *testing.T) {
	out := RenderMermaid(mustBuild(t))

	assert.True(t, strings.HasPrefix(out, "graph LR\n"))
	assert.Contains(t, out, "%% Web Foothold")
	assert.Contains(t, out, `n1(["1. Port Scanning"])`)
	assert.Contains(t, out, `n2["2. SQL Injection"]`)
	assert.Contains(t, out, `n3{{"3. Privilege Escalation"}}`)
	assert.Contains(t, out, `n4[/"4. OSINT"/]`)
	assert.Contains(t, out, "n1 --> n2")
	assert.Contains(t, out, "n2 -->|success| n3")
	assert.Contains(t, out, "class n2 critical")
	assert.NotContains(t, out, "subgraph")
}

func TestRenderMermaidClustersAndSafeIDs(t *testing.T) {
	doc := webChain()
	doc.Nodes[0].ID = "node-3.a"
	doc.Edges[1].To = "node-3.a"
	model, err := Build(doc, WithClusters())
	require.NoError(t, err)

	out := RenderMermaid(model)

	assert.Contains(t, out, `subgraph cluster_web["web"]`)
	assert.Contains(t, out, "n2 -->|success| node_3_a")
	assert.Equal(t, 3, strings.Count(out, "subgraph "))
	assert.Equal(t, 3, strings.Count(out, "    end\n"))
}

func TestRenderMermaidEdgeStyles(t *testing.T) {
	model, err := Build(cyclicChain())
	require.NoError(t, err)

	out := RenderMermaid(model)
	assert.Contains(t, out, "a --> b")
	assert.Contains(t, out, "b -.->|error| a")
}

func TestMermaidEscapeLabel(t *testing.T) {
	assert.Equal(t, "say 'hi' a/b c", mermaidEscapeLabel("say \"hi\" a|b\nc"))
}

func TestRenderASCII(t *testing.T) {
	out := RenderASCII(mustBuild(t))

	assert.Contains(t, out, "=== Web Foothold ===")
	assert.Contains(t, out, "4 techniques, 3h 15m, risk critical")
	assert.Contains(t, out, "│ 1. Port Scanning │")
	assert.Contains(t, out, "!!! 15-60m [OK]")
	assert.Contains(t, out, "▼")
	assert.Contains(t, out, "2. SQL Injection ─→ 3. Privilege Escalation [success]")
	assert.NotContains(t, out, "cycle detected")

	var row string
	for _, l := range strings.Split(out, "\n") {
		if strings.Contains(l, "│ 1. Port Scanning │") {
			row = l
			break
		}
	}
	assert.Contains(t, row, "│ 4. OSINT", "same-level nodes share a row")
}

func TestRenderASCIICyclic(t *testing.T) {
	model, err := Build(cyclicChain())
	require.NoError(t, err)
	assert.Contains(t, RenderASCII(model), "cycle detected")
}

func TestRenderMermaidForCLI(t *testing.T) {
	out := RenderMermaidForCLI(mustBuild(t))

	assert.Contains(t, out, "graph LR")
	assert.Contains(t, out, "Port-Scanning-L --> SQL-Injection-C-OK")
	assert.Contains(t, out, "SQL-Injection-C-OK -->|success| Privilege-Escalation-H")
	assert.Contains(t, out, "    OSINT-L\n")
	assert.NotContains(t, out, "[\"")
	assert.NotContains(t, out, "classDef")
}

func TestRenderASCIIAutoFallback(t *testing.T) {
	model := mustBuild(t)
	want := RenderASCII(model)

	assert.Equal(t, want, RenderASCIIAuto(model, ""))
	assert.Equal(t, want, RenderASCIIAuto(model, t.TempDir()))
}

func TestRenderASCIIAutoUsesBinary(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	dir := t.TempDir()
	script := "#!/bin/sh\necho rendered-by-cli\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mermaid-ascii"), []byte(script), 0o755))

	out := RenderASCIIAuto(mustBuild(t), dir)
	assert.Equal(t, "rendered-by-cli\n", out)
}

func TestRenderImagePNG(t *testing.T) {
	png, err := RenderImage(context.Background(), mustBuild(t, WithClusters()), FormatPNG)
	require.NoError(t, err)
	require.True(t, len(png) > 8, "PNG should be larger than header")
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestRenderImageSVG(t *testing.T) {
	svg, err := RenderImage(context.Background(), mustBuild(t), FormatSVG)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(svg, []byte("<svg")))
}

func TestRenderImageUnknownFormat(t *testing.T) {
	_, err := RenderImage(context.Background(), mustBuild(t), "bmp")
	assert.Error(t, err)
}
