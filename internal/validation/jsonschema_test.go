package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/attackchain/pkg/schema"
)

func newValidator(t *testing.T) *JSONSchemaValidator {
	t.Helper()
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	return v
}

func validDoc() *schema.ChainDocument {
	return &schema.ChainDocument{
		Version: schema.DocumentVersion,
		ID:      "chain-1",
		Name:    "web audit",
		Nodes: []schema.Node{
			{
				ID:       "node-1",
				Template: schema.TemplateRef{ID: "sql_injection", Severity: schema.SeverityCritical, EstimatedTime: schema.TimeRange{Min: 15, Max: 60}},
				Position: schema.Point{X: 200, Y: 100},
				Order:    1,
				Status:   schema.NodeStatusPending,
			},
			{
				ID:       "node-2",
				Template: schema.TemplateRef{ID: "xss_attack", Severity: schema.SeverityHigh},
				Position: schema.Point{X: 450, Y: 100},
				Order:    2,
				Status:   schema.NodeStatusPending,
			},
		},
		Edges:    []schema.Edge{{ID: "edge-1", From: "node-1", To: "node-2", Type: schema.EdgeTypeSequence}},
		Viewport: schema.ViewportState{Scale: 1},
	}
}

func chainErr(t *testing.T, err error) *schema.ChainError {
	t.Helper()
	var ce *schema.ChainError
	require.True(t, errors.As(err, &ce), "expected ChainError, got %T", err)
	return ce
}

func TestValidateDocument_Valid(t *testing.T) {
	assert.NoError(t, newValidator(t).ValidateDocument(validDoc()))
}

func TestValidateDocument_Nil(t *testing.T) {
	err := newValidator(t).ValidateDocument(nil)
	ce := chainErr(t, err)
	assert.Equal(t, schema.ErrCodeValidation, ce.Code)
	assert.Contains(t, ce.Message, "nil")
}

func TestValidateDocument_EmptyChainIsStructurallyValid(t *testing.T) {
	doc := &schema.ChainDocument{Version: 1, Viewport: schema.ViewportState{Scale: 1}}
	assert.NoError(t, newValidator(t).ValidateDocument(doc))
}

func TestValidateDocument_DuplicateNodeIDs(t *testing.T) {
	doc := validDoc()
	doc.Nodes[1].ID = "node-1"

	ce := chainErr(t, newValidator(t).ValidateDocument(doc))
	assert.Contains(t, ce.Message, "duplicate node id")
	assert.Equal(t, "node-1", ce.NodeID)
}

func TestValidateDocument_BadSeverity(t *testing.T) {
	doc := validDoc()
	doc.Nodes[0].Template.Severity = "extreme"

	ce := chainErr(t, newValidator(t).ValidateDocument(doc))
	violations, ok := ce.Details["violations"].([]string)
	require.True(t, ok)
	assert.Contains(t, violations[0], "/nodes/0/template/severity")
}

func TestValidateDocument_ScaleOutOfRange(t *testing.T) {
	doc := validDoc()
	doc.Viewport.Scale = 5
	assert.Error(t, newValidator(t).ValidateDocument(doc))
}

func TestValidateJSON(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"minimal", `{"version": 1, "nodes": [], "edges": []}`, false},
		{"missing version", `{"nodes": [], "edges": []}`, true},
		{"unknown field", `{"version": 1, "nodes": [], "edges": [], "owner": "x"}`, true},
		{"bad edge type", `{"version": 1, "nodes": [], "edges": [{"from": "a", "to": "b", "type": "weird"}]}`, true},
		{"not json", `{version`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateJSON([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
