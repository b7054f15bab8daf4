package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/attackchain/pkg/schema"
)

// --- Test chain builders ---

func node(id string, order int, name, category string, sev schema.Severity, min, max int) schema.Node {
	return schema.Node{
		ID:       id,
		Order:    order,
		Status:   schema.NodeStatusPending,
		Template: schema.TemplateRef{ID: id, Name: name, Category: category, Severity: sev, EstimatedTime: schema.TimeRange{Min: min, Max: max}},
	}
}

func webChain() *schema.ChainDocument {
	sqli := node("n2", 2, "SQL Injection", "web", schema.SeverityCritical, 15, 60)
	sqli.Status = schema.NodeStatusCompleted
	return &schema.ChainDocument{
		Name: "Web Foothold",
		Nodes: []schema.Node{
			node("n3", 3, "Privilege Escalation", "system", schema.SeverityHigh, 20, 90),
			node("n1", 1, "Port Scanning", "network", schema.SeverityLow, 5, 15),
			sqli,
			node("n4", 4, "OSINT", "", schema.SeverityLow, 10, 30),
		},
		Edges: []schema.Edge{
			{ID: "e1", From: "n1", To: "n2", Type: schema.EdgeTypeDefault},
			{ID: "e2", From: "n2", To: "n3", Type: schema.EdgeTypeSuccess},
		},
	}
}

func cyclicChain() *schema.ChainDocument {
	return &schema.ChainDocument{
		Nodes: []schema.Node{
			node("a", 1, "Phishing", "social", schema.SeverityMedium, 60, 240),
			node("b", 2, "Credential Stuffing", "web", schema.SeverityHigh, 30, 120),
		},
		Edges: []schema.Edge{
			{ID: "e1", From: "a", To: "b", Type: schema.EdgeTypeDefault},
			{ID: "e2", From: "b", To: "a", Type: schema.EdgeTypeError},
		},
	}
}

// --- Tests ---

func TestBuildWebChain(t *testing.T) {
	model, err := Build(webChain())
	require.NoError(t, err)

	assert.Equal(t, "Web Foothold", model.Title)
	assert.False(t, model.Cyclic)
	assert.Equal(t, "4 techniques, 3h 15m, risk critical", model.Summary)

	require.Len(t, model.Nodes, 4)
	ids := make([]string, 0, 4)
	for _, n := range model.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"n1", "n2", "n3", "n4"}, ids, "nodes follow chain order")

	kinds := map[string]NodeKind{}
	for _, n := range model.Nodes {
		kinds[n.ID] = n.Kind
	}
	assert.Equal(t, map[string]NodeKind{
		"n1": NodeKindEntry,
		"n2": NodeKindStep,
		"n3": NodeKindObjective,
		"n4": NodeKindIsolated,
	}, kinds)

	first := model.Nodes[0]
	assert.Equal(t, "1. Port Scanning", first.Label)
	assert.Equal(t, "5-15m", first.Minutes)
	assert.Equal(t, "low", first.Severity)
	assert.Equal(t, "completed", model.Nodes[1].Status)

	require.Len(t, model.Edges, 2)
	assert.Equal(t, Edge{From: "n1", To: "n2", Type: "default"}, model.Edges[0])
	assert.Equal(t, Edge{From: "n2", To: "n3", Type: "success", Label: "success"}, model.Edges[1])

	require.Len(t, model.Levels, 3)
	assert.ElementsMatch(t, []string{"n1", "n4"}, model.Levels[0])
	assert.Equal(t, []string{"n2"}, model.Levels[1])
	assert.Equal(t, []string{"n3"}, model.Levels[2])
	assert.Empty(t, model.Clusters)
}

func TestBuildClusters(t *testing.T) {
	model, err := Build(webChain(), WithClusters())
	require.NoError(t, err)

	require.Len(t, model.Clusters, 3)
	assert.Equal(t, "network", model.Clusters[0].Label)
	assert.Equal(t, "system", model.Clusters[1].Label)
	assert.Equal(t, "web", model.Clusters[2].Label)
	assert.Equal(t, []string{"n2"}, model.Clusters[2].NodeIDs)
}

func TestBuildCyclicChain(t *testing.T) {
	model, err := Build(cyclicChain())
	require.NoError(t, err)

	assert.True(t, model.Cyclic)
	assert.Equal(t, "Attack Chain", model.Title)
	assert.Equal(t, [][]string{{"a"}, {"b"}}, model.Levels)
	assert.Equal(t, NodeKindStep, model.Nodes[0].Kind)
	assert.Equal(t, "error", model.Edges[1].Label)
}

func TestBuildEmptyAndNil(t *testing.T) {
	model, err := Build(&schema.ChainDocument{})
	require.NoError(t, err)
	assert.Empty(t, model.Nodes)
	assert.Empty(t, model.Levels)

	_, err = Build(nil)
	assert.Error(t, err)
}

func TestBuildFallsBackToTemplateID(t *testing.T) {
	doc := &schema.ChainDocument{Nodes: []schema.Node{{ID: "x", Order: 7, Template: schema.TemplateRef{ID: "xss_attack"}}}}
	model, err := Build(doc)
	require.NoError(t, err)
	assert.Equal(t, "7. xss_attack", model.Nodes[0].Label)
}
