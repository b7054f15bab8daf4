package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/attackchain/pkg/schema"
)

func TestNewCELEngine(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	assert.Equal(t, "cel", e.Name())
}

func guardData() map[string]any {
	from := schema.Node{
		ID:       "node-1",
		Template: schema.TemplateRef{ID: "spear_phishing", Severity: schema.SeverityCritical, Techniques: []string{"T1566.001"}},
		Status:   schema.NodeStatusCompleted,
		Order:    1,
	}
	to := schema.Node{ID: "node-2", Template: schema.TemplateRef{ID: "privilege_escalation"}, Status: schema.NodeStatusPending}
	return map[string]any{
		"from":  NodeVars(from),
		"to":    NodeVars(to),
		"chain": map[string]any{"node_count": int64(2)},
	}
}

func TestCEL_Guards(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"status check", `from.status == "completed"`, true},
		{"severity check", `from.severity == "low"`, false},
		{"technique membership", `"T1566.001" in from.techniques`, true},
		{"chain figures", `chain.node_count > 1 && to.status == "pending"`, true},
		{"order arithmetic", `from.order + 1 == 2`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.EvaluateGuard(ctx, tt.expr, guardData())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCEL_MissingVariablesDefaultToEmptyMaps(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	out, err := e.Evaluate(context.Background(), `size(chain) == 0`, nil)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCEL_CompileGuard(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	assert.NoError(t, e.CompileGuard(`from.status == "completed"`))

	err = e.CompileGuard(`from.status ==`)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	err = e.CompileGuard(`steps.x == 1`)
	assert.Error(t, err, "undeclared variables do not compile")

	assert.Error(t, e.CompileGuard(""))
}

func TestCEL_NonBooleanGuard(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.EvaluateGuard(context.Background(), `from.id`, guardData())
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeExpression))
}

func TestCEL_RuntimeError(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), `from.missing == "x"`, guardData())
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeExpression))
}

func TestCEL_Concurrent(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := e.EvaluateGuard(context.Background(), `from.status == "completed"`, guardData())
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	e.mu.RLock()
	defer e.mu.RUnlock()
	assert.Len(t, e.cache, 1)
}
