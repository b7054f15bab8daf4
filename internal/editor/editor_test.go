package editor

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/attackchain/internal/metrics"
	"github.com/rendis/attackchain/internal/streaming"
	"github.com/rendis/attackchain/pkg/schema"
)

func seqIDs() Option {
	var mu sync.Mutex
	counters := map[string]int{}
	return WithIDGenerator(func(prefix string) string {
		mu.Lock()
		defer mu.Unlock()
		counters[prefix]++
		return fmt.Sprintf("%s-%d", prefix, counters[prefix])
	})
}

func tpl(id string, sev schema.Severity, min, max int) schema.TemplateRef {
	return schema.TemplateRef{ID: id, Name: id, Severity: sev, EstimatedTime: schema.TimeRange{Min: min, Max: max}}
}

func at(x, y float64) schema.Point { return schema.Point{X: x, Y: y} }

type fixture struct {
	ed   *Editor
	hub  *streaming.MemoryHub
	reg  *metrics.Registry
	evts <-chan streaming.ChangeEvent
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{hub: streaming.NewMemoryHub(streaming.WithBuffer(256)), reg: metrics.NewRegistry()}
	ch, cancel, err := f.hub.Subscribe(context.Background(), streaming.EventFilter{})
	require.NoError(t, err)
	t.Cleanup(cancel)
	f.evts = ch

	base := []Option{WithChainID("chain-1"), seqIDs(), WithHub(f.hub), WithMetrics(f.reg)}
	f.ed, err = New(append(base, opts...)...)
	require.NoError(t, err)
	return f
}

// kinds drains every published event kind so far.
func (f *fixture) kinds() []string {
	var out []string
	for {
		select {
		case ev := <-f.evts:
			out = append(out, ev.Kind)
		default:
			return out
		}
	}
}

func TestNew_EmptyChain(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "chain-1", f.ed.ChainID())
	assert.Empty(t, f.ed.Nodes())
	assert.Equal(t, schema.VerdictError, f.ed.ValidationStatus())
	assert.Equal(t, schema.SeverityLow, f.ed.Stats().RiskLevel)
	assert.Equal(t, schema.ViewportState{Scale: 1}, f.ed.Viewport())
	assert.False(t, f.ed.Dirty())
}

func TestScenario_ConnectedChain(t *testing.T) {
	f := newFixture(t)
	ed := f.ed

	t1 := ed.AddNode(tpl("t1", schema.SeverityHigh, 10, 30), at(0, 0))
	t2 := ed.AddNode(tpl("t2", schema.SeverityCritical, 5, 15), at(250, 0))
	t3 := ed.AddNode(tpl("t3", schema.SeverityLow, 1, 5), at(500, 0))
	_, ok := ed.AddEdge(t1.ID, t2.ID, schema.EdgeTypeDefault)
	require.True(t, ok)
	_, ok = ed.AddEdge(t2.ID, t3.ID, schema.EdgeTypeDefault)
	require.True(t, ok)

	st := ed.Stats()
	assert.Equal(t, schema.SeverityCritical, st.RiskLevel)
	assert.Equal(t, 50, st.TotalMinutes)
	assert.Equal(t, "50m", st.Duration)
	assert.Equal(t, schema.VerdictValid, ed.ValidationStatus())
	assert.Equal(t, []int{1, 2, 3}, []int{t1.Order, t2.Order, t3.Order})
}

func TestScenario_TwoHighNoEdges(t *testing.T) {
	f := newFixture(t)

	f.ed.AddNode(tpl("a", schema.SeverityHigh, 1, 5), at(0, 0))
	assert.Equal(t, schema.VerdictValid, f.ed.ValidationStatus())
	assert.Equal(t, schema.SeverityMedium, f.ed.Stats().RiskLevel)

	f.ed.AddNode(tpl("b", schema.SeverityHigh, 1, 5), at(0, 0))
	assert.Equal(t, schema.SeverityHigh, f.ed.Stats().RiskLevel)
	assert.Equal(t, schema.VerdictWarning, f.ed.ValidationStatus())
}

func TestAddEdge_RejectionsLeaveStateUnchanged(t *testing.T) {
	f := newFixture(t)
	a := f.ed.AddNode(tpl("a", schema.SeverityLow, 1, 1), at(0, 0))
	b := f.ed.AddNode(tpl("b", schema.SeverityLow, 1, 1), at(0, 0))
	_, ok := f.ed.AddEdge(a.ID, b.ID, schema.EdgeTypeDefault)
	require.True(t, ok)
	f.kinds()

	_, ok = f.ed.AddEdge(a.ID, a.ID, schema.EdgeTypeDefault)
	assert.False(t, ok)
	_, ok = f.ed.AddEdge(a.ID, b.ID, schema.EdgeTypeSuccess)
	assert.False(t, ok)
	_, ok = f.ed.AddEdge(a.ID, "ghost", schema.EdgeTypeDefault)
	assert.False(t, ok)

	_, err := f.ed.TryAddEdge(b.ID, b.ID, schema.EdgeTypeDefault)
	assert.True(t, schema.IsCode(err, schema.ErrCodeSelfLoop))

	assert.Len(t, f.ed.Edges(), 1)
	assert.Empty(t, f.kinds())

	snap, err := f.reg.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 4.0, snap["attackchain_editor_commands_total{command=add_edge,result=rejected}"])
}

func TestRemoveNode_CascadesAndPrunesSelection(t *testing.T) {
	f := newFixture(t)
	a := f.ed.AddNode(tpl("a", schema.SeverityLow, 1, 1), at(0, 0))
	b := f.ed.AddNode(tpl("b", schema.SeverityLow, 1, 1), at(0, 0))
	c := f.ed.AddNode(tpl("c", schema.SeverityLow, 1, 1), at(0, 0))
	f.ed.AddEdge(a.ID, b.ID, schema.EdgeTypeDefault)
	f.ed.AddEdge(b.ID, c.ID, schema.EdgeTypeDefault)
	f.ed.AddEdge(a.ID, c.ID, schema.EdgeTypeDefault)
	f.ed.Select(a.ID, b.ID)
	f.kinds()

	require.True(t, f.ed.RemoveNode(b.ID))

	for _, e := range f.ed.Edges() {
		assert.NotEqual(t, b.ID, e.From)
		assert.NotEqual(t, b.ID, e.To)
	}
	assert.Len(t, f.ed.Edges(), 1)
	assert.Equal(t, []string{a.ID}, f.ed.Selection())
	assert.Equal(t, []string{schema.EventNodeRemoved, schema.EventSelectionChanged}, f.kinds())

	assert.False(t, f.ed.RemoveNode(b.ID))
	assert.False(t, f.ed.RemoveEdge("edge-404"))
}

func TestRemoveSelected(t *testing.T) {
	f := newFixture(t)
	a := f.ed.AddNode(tpl("a", schema.SeverityLow, 1, 1), at(0, 0))
	b := f.ed.AddNode(tpl("b", schema.SeverityLow, 1, 1), at(0, 0))
	f.ed.AddNode(tpl("c", schema.SeverityLow, 1, 1), at(0, 0))
	f.ed.Select(a.ID, b.ID)

	removed := f.ed.RemoveSelected()
	assert.Equal(t, []string{a.ID, b.ID}, removed)
	assert.Len(t, f.ed.Nodes(), 1)
	assert.Empty(t, f.ed.Selection())
	assert.Equal(t, schema.VerdictValid, f.ed.ValidationStatus())
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	a := f.ed.AddNode(tpl("a", schema.SeverityCritical, 1, 1), at(0, 0))
	f.ed.Select(a.ID)

	f.ed.Clear()

	assert.Empty(t, f.ed.Nodes())
	assert.Empty(t, f.ed.Edges())
	assert.Empty(t, f.ed.Selection())
	assert.Equal(t, schema.VerdictError, f.ed.ValidationStatus())
	assert.Equal(t, schema.SeverityLow, f.ed.Stats().RiskLevel)
}

func TestViewportCommands(t *testing.T) {
	f := newFixture(t)

	require.True(t, f.ed.Zoom(0.5, at(100, 100)))
	assert.Equal(t, schema.ViewportState{Scale: 1.5, Offset: at(-50, -50)}, f.ed.Viewport())

	require.True(t, f.ed.Zoom(5, at(0, 0)))
	assert.False(t, f.ed.Zoom(1, at(0, 0)), "clamped at max scale")
	assert.Equal(t, 2.0, f.ed.Viewport().Scale)

	f.ed.Pan(10, -5)
	f.ed.ResetView()
	assert.Equal(t, schema.ViewportState{Scale: 1}, f.ed.Viewport())

	require.True(t, f.ed.Wheel(-100, at(0, 0)))
	assert.InDelta(t, 1.1, f.ed.Viewport().Scale, 1e-9)
	assert.True(t, f.ed.Dirty())
}

func TestDropTemplate_UsesViewport(t *testing.T) {
	f := newFixture(t)
	f.ed.Pan(100, 50)
	f.ed.Zoom(1, at(100, 50))

	n := f.ed.DropTemplate(tpl("a", schema.SeverityLow, 1, 1), at(300, 250))
	assert.Equal(t, at(100, 100), n.Position)
}

func TestFitToContent(t *testing.T) {
	f := newFixture(t, WithViewSize(schema.Size{Width: 1000, Height: 1000}))
	f.ed.AddNode(tpl("a", schema.SeverityLow, 1, 1), at(0, 0))
	f.ed.AddNode(tpl("b", schema.SeverityLow, 1, 1), at(360, 400))

	f.ed.FitToContent(schema.Size{})

	vp := f.ed.Viewport()
	assert.Equal(t, 0.8, vp.Scale)
	assert.Equal(t, at(500-250*0.8, 500-250*0.8), vp.Offset)
}

func TestAutoLayout_Idempotent(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.ed.AddNode(tpl("t", schema.SeverityLow, 1, 1), at(float64(i)*7, -3))
	}

	f.ed.AutoLayout()
	first := f.ed.Nodes()
	f.ed.AutoLayout()
	assert.Equal(t, first, f.ed.Nodes())

	assert.Equal(t, at(200, 100), first[0].Position)
	assert.Equal(t, at(700, 100), first[2].Position)
	assert.Equal(t, at(200, 250), first[3].Position)
}

func TestArrange_Layered(t *testing.T) {
	f := newFixture(t)
	a := f.ed.AddNode(tpl("a", schema.SeverityLow, 1, 1), at(0, 0))
	b := f.ed.AddNode(tpl("b", schema.SeverityLow, 1, 1), at(0, 0))
	c := f.ed.AddNode(tpl("c", schema.SeverityLow, 1, 1), at(0, 0))
	f.ed.AddEdge(c.ID, a.ID, schema.EdgeTypeDefault)
	f.ed.AddEdge(a.ID, b.ID, schema.EdgeTypeDefault)
	f.kinds()

	f.ed.Arrange(LayoutLayered)

	na, _ := f.ed.Node(a.ID)
	nb, _ := f.ed.Node(b.ID)
	nc, _ := f.ed.Node(c.ID)
	assert.Less(t, nc.Position.X, na.Position.X)
	assert.Less(t, na.Position.X, nb.Position.X)
	assert.Equal(t, []string{schema.EventLayoutApplied}, f.kinds())
}

func TestObjectivesAndMetadata(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.ed.AddObjective("Domain admin"))
	assert.False(t, f.ed.AddObjective("Domain admin"))
	assert.False(t, f.ed.AddObjective("  "))
	assert.True(t, f.ed.AddObjective("Exfiltrate HR data"))
	assert.True(t, f.ed.RemoveObjective("Domain admin"))
	assert.False(t, f.ed.RemoveObjective("missing"))
	assert.Equal(t, []string{"Exfiltrate HR data"}, f.ed.Objectives())

	f.ed.SetName("Q3 red team")
	f.ed.SetDescription("internal network")
	doc := f.ed.Document()
	assert.Equal(t, "Q3 red team", doc.Name)
	assert.Equal(t, "internal network", doc.Description)
}

func TestSetNodeStatusAndUpdateEdge(t *testing.T) {
	f := newFixture(t)
	a := f.ed.AddNode(tpl("a", schema.SeverityLow, 1, 1), at(0, 0))
	b := f.ed.AddNode(tpl("b", schema.SeverityLow, 1, 1), at(0, 0))
	e, _ := f.ed.AddEdge(a.ID, b.ID, schema.EdgeTypeDefault)
	f.kinds()

	assert.True(t, f.ed.SetNodeStatus(a.ID, schema.NodeStatusRunning))
	assert.False(t, f.ed.SetNodeStatus(a.ID, "bogus"))
	assert.True(t, f.ed.UpdateEdge(e.ID, schema.EdgeTypeConditional, `from.status == "completed"`))
	assert.False(t, f.ed.UpdateEdge("edge-404", schema.EdgeTypeSuccess, ""))

	assert.Equal(t, []string{schema.EventNodeStatus, schema.EventEdgeUpdated}, f.kinds())
}

func TestGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.ed.AddNode(tpl("a", schema.SeverityHigh, 1, 1), at(0, 0))
	b := f.ed.AddNode(tpl("b", schema.SeverityLow, 1, 1), at(0, 0))
	c := f.ed.AddNode(tpl("c", schema.SeverityLow, 1, 1), at(0, 0))
	e1, _ := f.ed.AddEdge(a.ID, b.ID, schema.EdgeTypeConditional)
	e2, _ := f.ed.AddEdge(a.ID, c.ID, schema.EdgeTypeConditional)
	f.ed.AddEdge(b.ID, c.ID, schema.EdgeTypeSequence)
	f.ed.UpdateEdge(e1.ID, schema.EdgeTypeConditional, `from.status == "completed" && chain.node_count == 3`)
	f.ed.UpdateEdge(e2.ID, schema.EdgeTypeConditional, `from.status +`)

	res := f.ed.Guards(ctx)
	require.Len(t, res, 2)
	assert.False(t, res[0].Passed)
	assert.Empty(t, res[0].Error)
	assert.False(t, res[1].Passed)
	assert.NotEmpty(t, res[1].Error)

	f.ed.SetNodeStatus(a.ID, schema.NodeStatusCompleted)
	res = f.ed.Guards(ctx)
	assert.True(t, res[0].Passed)

	report := f.ed.Inspect()
	assert.False(t, report.Valid(), "the unparsable guard is an error")
}

func TestSnapshotAndMarkSaved(t *testing.T) {
	f := newFixture(t)
	f.ed.AddNode(tpl("a", schema.SeverityHigh, 10, 30), at(0, 0))

	rec, gen := f.ed.Snapshot()
	assert.Equal(t, "chain-1", rec.ID)
	assert.Equal(t, 1, rec.NodeCount)
	assert.Equal(t, 30, rec.TotalMinutes)
	assert.Equal(t, schema.SeverityMedium, rec.RiskLevel)

	f.ed.AddNode(tpl("b", schema.SeverityHigh, 10, 30), at(0, 0))
	f.ed.MarkSaved(gen)
	assert.True(t, f.ed.Dirty(), "a change after the snapshot keeps the session dirty")

	_, gen = f.ed.Snapshot()
	f.ed.MarkSaved(gen)
	assert.False(t, f.ed.Dirty())
}

func TestConcurrentCommands(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				n := f.ed.AddNode(tpl("t", schema.SeverityLow, 1, 1), at(0, 0))
				_ = f.ed.Stats()
				f.ed.MoveNode(n.ID, at(1, 1))
			}
		}()
	}
	wg.Wait()

	nodes := f.ed.Nodes()
	assert.Len(t, nodes, 200)
	seen := make(map[string]bool)
	for _, n := range nodes {
		assert.False(t, seen[n.ID])
		seen[n.ID] = true
	}
	assert.Equal(t, 200, f.ed.Stats().NodeCount)
}
