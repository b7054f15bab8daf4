package editor

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/rendis/attackchain/internal/layout"
	"github.com/rendis/attackchain/internal/logging"
	"github.com/rendis/attackchain/internal/streaming"
	"github.com/rendis/attackchain/pkg/schema"
)

// --- chain metadata ---

// SetName renames the chain.
func (e *Editor) SetName(name string) {
	e.mu.Lock()
	defer e.unlock()
	e.name = name
	e.touch()
}

// SetDescription sets the chain description.
func (e *Editor) SetDescription(desc string) {
	e.mu.Lock()
	defer e.unlock()
	e.description = desc
	e.touch()
}

// AddObjective appends an objective. Blank and duplicate objectives are
// ignored.
func (e *Editor) AddObjective(objective string) bool {
	e.mu.Lock()
	defer e.unlock()
	objective = strings.TrimSpace(objective)
	if objective == "" || slices.Contains(e.objectives, objective) {
		return false
	}
	e.objectives = append(e.objectives, objective)
	e.touch()
	return true
}

// RemoveObjective removes an objective; unknown objectives are a no-op.
func (e *Editor) RemoveObjective(objective string) bool {
	e.mu.Lock()
	defer e.unlock()
	i := slices.Index(e.objectives, objective)
	if i < 0 {
		return false
	}
	e.objectives = slices.Delete(e.objectives, i, i+1)
	e.touch()
	return true
}

// --- graph commands ---

// AddNode places a template at a logical position. It always succeeds.
func (e *Editor) AddNode(tpl schema.TemplateRef, pos schema.Point) schema.Node {
	e.mu.Lock()
	defer e.unlock()
	return e.addNode(tpl, pos)
}

// DropTemplate places a template at a screen position, as when it is
// dropped from the catalog onto the canvas.
func (e *Editor) DropTemplate(tpl schema.TemplateRef, screen schema.Point) schema.Node {
	e.mu.Lock()
	defer e.unlock()
	return e.addNode(tpl, e.view.ScreenToLogical(screen))
}

func (e *Editor) addNode(tpl schema.TemplateRef, pos schema.Point) schema.Node {
	n := e.graph.AddNode(tpl, pos)
	e.logger.DebugContext(logging.WithNodeID(e.ctx, n.ID), "node added", slog.String("template", tpl.ID))
	e.commit("add_node", streaming.ChangeEvent{Kind: schema.EventNodeAdded, NodeIDs: []string{n.ID}})
	return n
}

// RemoveNode removes a node with its incident edges. A drag or pending
// connection on the node ends without a commit. Unknown ids are a no-op
// and return false.
func (e *Editor) RemoveNode(id string) bool {
	e.mu.Lock()
	defer e.unlock()
	return e.removeNode(id)
}

func (e *Editor) removeNode(id string) bool {
	wasSelected := e.graph.IsSelected(id)
	edges, ok := e.graph.RemoveNode(id)
	if !ok {
		e.record("remove_node", false)
		return false
	}
	e.ctl.NodeRemoved(id)
	e.commit("remove_node", streaming.ChangeEvent{Kind: schema.EventNodeRemoved, NodeIDs: []string{id}, EdgeIDs: edges})
	if wasSelected {
		e.publishSelection()
	}
	return true
}

// RemoveSelected removes every selected node.
func (e *Editor) RemoveSelected() []string {
	e.mu.Lock()
	defer e.unlock()
	ids := e.graph.Selection()
	for _, id := range ids {
		e.removeNode(id)
	}
	return ids
}

// AddEdge connects two nodes. Self-loops, unknown endpoints and duplicate
// ordered pairs are rejected without changing state.
func (e *Editor) AddEdge(from, to string, typ schema.EdgeType) (schema.Edge, bool) {
	e.mu.Lock()
	defer e.unlock()
	edge, err := e.graph.TryAddEdge(from, to, typ)
	if err != nil {
		e.logger.DebugContext(logging.WithNodeID(e.ctx, from), "edge rejected", slog.String("to", to), slog.String("reason", err.Error()))
		e.record("add_edge", false)
		return schema.Edge{}, false
	}
	e.commit("add_edge", streaming.ChangeEvent{Kind: schema.EventEdgeAdded, NodeIDs: []string{from, to}, EdgeIDs: []string{edge.ID}})
	return edge, true
}

// TryAddEdge is AddEdge that reports why a connection was rejected.
func (e *Editor) TryAddEdge(from, to string, typ schema.EdgeType) (schema.Edge, error) {
	e.mu.Lock()
	defer e.unlock()
	edge, err := e.graph.TryAddEdge(from, to, typ)
	if err != nil {
		e.record("add_edge", false)
		return schema.Edge{}, err
	}
	e.commit("add_edge", streaming.ChangeEvent{Kind: schema.EventEdgeAdded, NodeIDs: []string{from, to}, EdgeIDs: []string{edge.ID}})
	return edge, nil
}

// RemoveEdge removes an edge; unknown ids are a no-op.
func (e *Editor) RemoveEdge(id string) bool {
	e.mu.Lock()
	defer e.unlock()
	if !e.graph.RemoveEdge(id) {
		e.record("remove_edge", false)
		return false
	}
	e.commit("remove_edge", streaming.ChangeEvent{Kind: schema.EventEdgeRemoved, EdgeIDs: []string{id}})
	return true
}

// UpdateEdge changes an edge's type and label. For conditional edges the
// label holds the guard expression.
func (e *Editor) UpdateEdge(id string, typ schema.EdgeType, label string) bool {
	e.mu.Lock()
	defer e.unlock()
	if !e.graph.UpdateEdge(id, typ, label) {
		e.record("update_edge", false)
		return false
	}
	e.commit("update_edge", streaming.ChangeEvent{Kind: schema.EventEdgeUpdated, EdgeIDs: []string{id}})
	return true
}

// MoveNode sets a node's logical position. There are no bounds.
func (e *Editor) MoveNode(id string, pos schema.Point) bool {
	e.mu.Lock()
	defer e.unlock()
	if !e.graph.MoveNode(id, pos) {
		e.record("move_node", false)
		return false
	}
	e.commit("move_node", streaming.ChangeEvent{Kind: schema.EventNodeMoved, NodeIDs: []string{id}, Payload: pos})
	return true
}

// SetNodeStatus records execution progress on a node.
func (e *Editor) SetNodeStatus(id string, status schema.NodeStatus) bool {
	e.mu.Lock()
	defer e.unlock()
	if !e.graph.SetNodeStatus(id, status) {
		e.record("set_status", false)
		return false
	}
	e.commit("set_status", streaming.ChangeEvent{Kind: schema.EventNodeStatus, NodeIDs: []string{id}, Payload: status})
	return true
}

// Clear empties nodes, edges and selection at once. An active gesture is
// cancelled first.
func (e *Editor) Clear() {
	e.mu.Lock()
	defer e.unlock()
	e.ctl.Cancel()
	e.graph.Clear()
	e.commit("clear", streaming.ChangeEvent{Kind: schema.EventChainCleared})
}

// --- selection ---

// Select replaces the selection. Unknown ids are dropped.
func (e *Editor) Select(ids ...string) {
	e.mu.Lock()
	defer e.unlock()
	e.graph.Select(ids...)
	e.publishSelection()
}

// ToggleSelect flips one node's membership in the selection.
func (e *Editor) ToggleSelect(id string) bool {
	e.mu.Lock()
	defer e.unlock()
	on := e.graph.ToggleSelect(id)
	e.publishSelection()
	return on
}

// SelectAll selects every node.
func (e *Editor) SelectAll() {
	e.mu.Lock()
	defer e.unlock()
	e.graph.SelectAll()
	e.publishSelection()
}

// ClearSelection empties the selection.
func (e *Editor) ClearSelection() {
	e.mu.Lock()
	defer e.unlock()
	e.graph.ClearSelection()
	e.publishSelection()
}

func (e *Editor) publishSelection() {
	e.publish(streaming.ChangeEvent{Kind: schema.EventSelectionChanged, NodeIDs: e.graph.Selection()})
}

// --- viewport ---

// Pan shifts the view by a screen-space delta.
func (e *Editor) Pan(dx, dy float64) {
	e.mu.Lock()
	defer e.unlock()
	e.view.Pan(dx, dy)
	e.viewportChanged("pan")
}

// Zoom changes the scale by delta around a screen pivot. It returns false
// when the clamp left the scale unchanged.
func (e *Editor) Zoom(delta float64, pivot schema.Point) bool {
	e.mu.Lock()
	defer e.unlock()
	if !e.view.Zoom(delta, pivot) {
		e.record("zoom", false)
		return false
	}
	e.viewportChanged("zoom")
	return true
}

// Wheel applies a mouse-wheel tick at the pointer.
func (e *Editor) Wheel(deltaY float64, pivot schema.Point) bool {
	e.mu.Lock()
	defer e.unlock()
	if !e.view.ZoomStep(deltaY, pivot) {
		return false
	}
	e.viewportChanged("zoom")
	return true
}

// ResetView restores scale 1 and zero offset.
func (e *Editor) ResetView() {
	e.mu.Lock()
	defer e.unlock()
	e.view.Reset()
	e.viewportChanged("reset_view")
}

// SetViewSize records the host canvas size used by FitToContent.
func (e *Editor) SetViewSize(s schema.Size) {
	e.mu.Lock()
	defer e.unlock()
	if s.Width > 0 && s.Height > 0 {
		e.viewSize = s
	}
}

// FitToContent frames every node in the view. A zero size uses the last
// size set with SetViewSize.
func (e *Editor) FitToContent(view schema.Size) {
	e.mu.Lock()
	defer e.unlock()
	if view.Width <= 0 || view.Height <= 0 {
		view = e.viewSize
	}
	e.view.FitToContent(e.graph.Nodes(), view)
	e.viewportChanged("fit")
}

func (e *Editor) viewportChanged(command string) {
	e.touch()
	e.record(command, true)
	e.publish(streaming.ChangeEvent{Kind: schema.EventViewportChanged, Payload: e.view.State()})
}

// --- layout ---

// LayoutMode selects an auto-layout algorithm.
type LayoutMode string

const (
	// LayoutGrid places nodes by order in three columns.
	LayoutGrid LayoutMode = "grid"
	// LayoutLayered places nodes in columns by dependency depth.
	LayoutLayered LayoutMode = "layered"
)

// AutoLayout applies the grid layout.
func (e *Editor) AutoLayout() {
	e.Arrange(LayoutGrid)
}

// Arrange applies the given layout to all nodes. Unknown modes fall back
// to the grid.
func (e *Editor) Arrange(mode LayoutMode) {
	e.mu.Lock()
	defer e.unlock()
	e.arrange(mode)
}

func (e *Editor) arrange(mode LayoutMode) {
	nodes := e.graph.Nodes()
	var positions map[string]schema.Point
	if mode == LayoutLayered {
		positions = layout.Layered(nodes, e.graph.Edges())
	} else {
		mode = LayoutGrid
		positions = layout.Grid(nodes)
	}
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		e.graph.MoveNode(n.ID, positions[n.ID])
		ids = append(ids, n.ID)
	}
	e.commit("auto_layout", streaming.ChangeEvent{Kind: schema.EventLayoutApplied, NodeIDs: ids, Payload: string(mode)})
}
