// Package graph owns the nodes and edges of an attack chain and enforces
// their referential invariants: every edge joins two distinct live nodes,
// at most one edge exists per ordered pair, and removing a node removes
// every edge touching it along with its selection entry.
package graph

import (
	"sort"

	"github.com/google/uuid"

	"github.com/rendis/attackchain/pkg/schema"
)

type pairKey struct {
	from, to string
}

// Model is the in-memory chain graph. Lookups by id are O(1) through the
// index maps; removal cascades in O(degree) through the incidence sets.
//
// Model is not safe for concurrent use; the editor serializes access.
type Model struct {
	nodes    map[string]*schema.Node
	nodeSeq  []string // insertion order
	edges    map[string]*schema.Edge
	edgeSeq  []string
	pairs    map[pairKey]string             // ordered pair -> edge id
	incident map[string]map[string]struct{} // node id -> edge ids touching it
	selected map[string]struct{}

	newID func(prefix string) string
}

// Option configures a Model.
type Option func(*Model)

// WithIDGenerator overrides node/edge id generation. Ids must be unique.
func WithIDGenerator(fn func(prefix string) string) Option {
	return func(m *Model) { m.newID = fn }
}

// New creates an empty Model.
func New(opts ...Option) *Model {
	m := &Model{
		nodes:    make(map[string]*schema.Node),
		edges:    make(map[string]*schema.Edge),
		pairs:    make(map[pairKey]string),
		incident: make(map[string]map[string]struct{}),
		selected: make(map[string]struct{}),
		newID:    defaultID,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func defaultID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// --- Nodes ---

// AddNode places a template at a logical position. The node gets a fresh
// id, order = current max order + 1 and status pending. Always succeeds.
func (m *Model) AddNode(tpl schema.TemplateRef, pos schema.Point) schema.Node {
	n := &schema.Node{
		ID:       m.newID("node"),
		Template: cloneTemplate(tpl),
		Position: pos,
		Order:    m.maxOrder() + 1,
		Status:   schema.NodeStatusPending,
	}
	m.insertNode(n)
	return *n
}

func (m *Model) insertNode(n *schema.Node) {
	m.nodes[n.ID] = n
	m.nodeSeq = append(m.nodeSeq, n.ID)
	m.incident[n.ID] = make(map[string]struct{})
}

func (m *Model) maxOrder() int {
	max := 0
	for _, n := range m.nodes {
		if n.Order > max {
			max = n.Order
		}
	}
	return max
}

// RemoveNode removes the node, every edge with it as an endpoint, and its
// selection entry. Returns the removed edge ids; ok is false for unknown ids.
func (m *Model) RemoveNode(id string) (removedEdges []string, ok bool) {
	if _, exists := m.nodes[id]; !exists {
		return nil, false
	}
	for edgeID := range m.incident[id] {
		removedEdges = append(removedEdges, edgeID)
	}
	sort.Strings(removedEdges)
	for _, edgeID := range removedEdges {
		m.removeEdge(edgeID)
	}
	delete(m.incident, id)
	delete(m.nodes, id)
	delete(m.selected, id)
	m.nodeSeq = removeString(m.nodeSeq, id)
	return removedEdges, true
}

// MoveNode overwrites a node position. No bounds checking is done.
func (m *Model) MoveNode(id string, pos schema.Point) bool {
	n, ok := m.nodes[id]
	if !ok {
		return false
	}
	n.Position = pos
	return true
}

// SetNodeStatus updates a node's execution status.
func (m *Model) SetNodeStatus(id string, status schema.NodeStatus) bool {
	n, ok := m.nodes[id]
	if !ok || !status.IsValid() {
		return false
	}
	n.Status = status
	return true
}

// Node returns a copy of the node with the given id.
func (m *Model) Node(id string) (schema.Node, bool) {
	n, ok := m.nodes[id]
	if !ok {
		return schema.Node{}, false
	}
	return copyNode(n), true
}

// HasNode reports whether id is a live node.
func (m *Model) HasNode(id string) bool {
	_, ok := m.nodes[id]
	return ok
}

// Nodes returns a snapshot of all nodes ordered by Order, then insertion.
func (m *Model) Nodes() []schema.Node {
	out := make([]schema.Node, 0, len(m.nodeSeq))
	for _, id := range m.nodeSeq {
		out = append(out, copyNode(m.nodes[id]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// NodeCount returns the number of live nodes.
func (m *Model) NodeCount() int { return len(m.nodes) }

// NodesInRect returns the ids of nodes whose footprint intersects r.
func (m *Model) NodesInRect(r schema.Rect, footprint schema.Size) []string {
	var ids []string
	for _, id := range m.nodeSeq {
		n := m.nodes[id]
		box := schema.Rect{
			Min: n.Position,
			Max: schema.Point{X: n.Position.X + footprint.Width, Y: n.Position.Y + footprint.Height},
		}
		if box.Intersects(r) {
			ids = append(ids, id)
		}
	}
	return ids
}

// --- Edges ---

// AddEdge connects from -> to. Self-loops, unknown endpoints and duplicate
// ordered pairs are rejected silently: ok is false and nothing changes.
func (m *Model) AddEdge(from, to string, typ schema.EdgeType) (schema.Edge, bool) {
	e, err := m.TryAddEdge(from, to, typ)
	if err != nil {
		return schema.Edge{}, false
	}
	return e, true
}

// TryAddEdge is AddEdge with the rejection reason. The model is unchanged
// whenever an error is returned.
func (m *Model) TryAddEdge(from, to string, typ schema.EdgeType) (schema.Edge, error) {
	if from == to {
		return schema.Edge{}, schema.NewError(schema.ErrCodeSelfLoop, "edge endpoints must differ").WithNode(from)
	}
	if _, ok := m.nodes[from]; !ok {
		return schema.Edge{}, schema.NewErrorf(schema.ErrCodeUnknownEndpoint, "unknown source node %q", from)
	}
	if _, ok := m.nodes[to]; !ok {
		return schema.Edge{}, schema.NewErrorf(schema.ErrCodeUnknownEndpoint, "unknown target node %q", to)
	}
	if existing, ok := m.pairs[pairKey{from, to}]; ok {
		return schema.Edge{}, schema.NewErrorf(schema.ErrCodeDuplicateEdge, "edge %s -> %s already exists", from, to).
			WithDetails(map[string]any{"edge_id": existing})
	}
	if typ == "" || !typ.IsValid() {
		typ = schema.EdgeTypeDefault
	}
	e := &schema.Edge{ID: m.newID("edge"), From: from, To: to, Type: typ}
	m.insertEdge(e)
	return *e, nil
}

func (m *Model) insertEdge(e *schema.Edge) {
	m.edges[e.ID] = e
	m.edgeSeq = append(m.edgeSeq, e.ID)
	m.pairs[pairKey{e.From, e.To}] = e.ID
	m.incident[e.From][e.ID] = struct{}{}
	m.incident[e.To][e.ID] = struct{}{}
}

// RemoveEdge deletes an edge. Unknown ids are a no-op (ok false).
func (m *Model) RemoveEdge(id string) bool {
	if _, ok := m.edges[id]; !ok {
		return false
	}
	m.removeEdge(id)
	return true
}

func (m *Model) removeEdge(id string) {
	e := m.edges[id]
	delete(m.pairs, pairKey{e.From, e.To})
	delete(m.incident[e.From], id)
	delete(m.incident[e.To], id)
	delete(m.edges, id)
	m.edgeSeq = removeString(m.edgeSeq, id)
}

// UpdateEdge changes the type and label of an existing edge.
func (m *Model) UpdateEdge(id string, typ schema.EdgeType, label string) bool {
	e, ok := m.edges[id]
	if !ok || !typ.IsValid() {
		return false
	}
	e.Type = typ
	e.Label = label
	return true
}

// Edge returns a copy of the edge with the given id.
func (m *Model) Edge(id string) (schema.Edge, bool) {
	e, ok := m.edges[id]
	if !ok {
		return schema.Edge{}, false
	}
	return *e, true
}

// EdgeBetween returns the edge for the ordered pair, if any.
func (m *Model) EdgeBetween(from, to string) (schema.Edge, bool) {
	id, ok := m.pairs[pairKey{from, to}]
	if !ok {
		return schema.Edge{}, false
	}
	return *m.edges[id], true
}

// Edges returns a snapshot of all edges in insertion order.
func (m *Model) Edges() []schema.Edge {
	out := make([]schema.Edge, 0, len(m.edgeSeq))
	for _, id := range m.edgeSeq {
		out = append(out, *m.edges[id])
	}
	return out
}

// EdgeCount returns the number of live edges.
func (m *Model) EdgeCount() int { return len(m.edges) }

// Degree returns how many edges touch the node.
func (m *Model) Degree(id string) int { return len(m.incident[id]) }

// --- Selection ---

// Select replaces the selection. Unknown ids are dropped.
func (m *Model) Select(ids ...string) {
	m.selected = make(map[string]struct{}, len(ids))
	m.AddToSelection(ids...)
}

// AddToSelection extends the selection with the live ids among ids.
func (m *Model) AddToSelection(ids ...string) {
	for _, id := range ids {
		if _, ok := m.nodes[id]; ok {
			m.selected[id] = struct{}{}
		}
	}
}

// ToggleSelect flips the selection state of a live node.
func (m *Model) ToggleSelect(id string) bool {
	if _, ok := m.nodes[id]; !ok {
		return false
	}
	if _, sel := m.selected[id]; sel {
		delete(m.selected, id)
	} else {
		m.selected[id] = struct{}{}
	}
	return true
}

// SelectAll selects every live node.
func (m *Model) SelectAll() {
	m.Select(m.nodeSeq...)
}

// ClearSelection empties the selection.
func (m *Model) ClearSelection() {
	m.selected = make(map[string]struct{})
}

// IsSelected reports whether id is selected.
func (m *Model) IsSelected(id string) bool {
	_, ok := m.selected[id]
	return ok
}

// Selection returns the selected ids in node insertion order.
func (m *Model) Selection() []string {
	out := make([]string, 0, len(m.selected))
	for _, id := range m.nodeSeq {
		if _, ok := m.selected[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// RemoveSelected removes every selected node with its cascade.
func (m *Model) RemoveSelected() []string {
	ids := m.Selection()
	for _, id := range ids {
		m.RemoveNode(id)
	}
	return ids
}

// --- Bulk ---

// Clear empties nodes, edges and selection in one step.
func (m *Model) Clear() {
	m.nodes = make(map[string]*schema.Node)
	m.nodeSeq = nil
	m.edges = make(map[string]*schema.Edge)
	m.edgeSeq = nil
	m.pairs = make(map[pairKey]string)
	m.incident = make(map[string]map[string]struct{})
	m.selected = make(map[string]struct{})
}

// Restore replaces the model content with previously exported nodes and
// edges, keeping their ids, order and status. Nodes with empty or repeated
// ids get fresh ones. Edges that violate an invariant are skipped and
// returned.
func (m *Model) Restore(nodes []schema.Node, edges []schema.Edge) (skipped []schema.Edge) {
	m.Clear()
	for i := range nodes {
		n := copyNode(&nodes[i])
		if n.ID == "" || m.HasNode(n.ID) {
			n.ID = m.newID("node")
		}
		if !n.Status.IsValid() {
			n.Status = schema.NodeStatusPending
		}
		m.insertNode(&n)
	}
	for _, e := range edges {
		if e.From == e.To || !m.HasNode(e.From) || !m.HasNode(e.To) {
			skipped = append(skipped, e)
			continue
		}
		if _, dup := m.pairs[pairKey{e.From, e.To}]; dup {
			skipped = append(skipped, e)
			continue
		}
		if _, dup := m.edges[e.ID]; dup || e.ID == "" {
			e.ID = m.newID("edge")
		}
		if !e.Type.IsValid() {
			e.Type = schema.EdgeTypeDefault
		}
		ec := e
		m.insertEdge(&ec)
	}
	return skipped
}

func copyNode(n *schema.Node) schema.Node {
	c := *n
	c.Template = cloneTemplate(n.Template)
	return c
}

func cloneTemplate(t schema.TemplateRef) schema.TemplateRef {
	t.Prerequisites = append([]string(nil), t.Prerequisites...)
	t.Payloads = append([]string(nil), t.Payloads...)
	t.Techniques = append([]string(nil), t.Techniques...)
	return t
}

func removeString(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
