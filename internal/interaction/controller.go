// Package interaction turns pointer events into graph and viewport commands.
//
// The controller is a state machine over a closed set of gesture states
// (see State). Pointer-down either starts a gesture from Idle or, while the
// two-click connect protocol is armed, completes it. Any other attempt to
// start a gesture while one is active is rejected and the active gesture
// continues untouched.
package interaction

import (
	"log/slog"

	"github.com/rendis/attackchain/pkg/schema"
)

// Button identifies the pointer button of an event.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

// PointerEvent is a host pointer event. Screen is in pixels; Target is the
// id of the node under the pointer, empty for the bare canvas.
type PointerEvent struct {
	Screen schema.Point
	Button Button
	Target string
	Shift  bool
	Alt    bool
}

// Graph is the part of the graph model the controller drives.
type Graph interface {
	Node(id string) (schema.Node, bool)
	MoveNode(id string, pos schema.Point) bool
	AddEdge(from, to string, typ schema.EdgeType) (schema.Edge, bool)
	NodesInRect(r schema.Rect, footprint schema.Size) []string
	Select(ids ...string)
	AddToSelection(ids ...string)
	ToggleSelect(id string) bool
	IsSelected(id string) bool
}

// Viewport is the part of the transform the controller reads and pans.
type Viewport interface {
	Scale() float64
	Pan(dx, dy float64)
	ScreenToLogical(p schema.Point) schema.Point
}

// Capturer attaches pointer listeners for the lifetime of a gesture.
// Acquire is called when a gesture starts; the returned release func is
// called exactly once when it ends, whatever the reason. Both run
// synchronously inside the controller call that changed the gesture.
type Capturer interface {
	Acquire() (release func())
}

// Outcome reports what a pointer call changed so the caller can recompute
// derived state and publish events.
type Outcome struct {
	Rejected         bool         // illegal transition; nothing changed
	Moved            string       // node moved by this event
	DragEnded        string       // node whose drag was committed
	Reverted         string       // node whose drag was cancelled and restored
	EdgeAdded        *schema.Edge // edge created by the connect protocol
	SelectionChanged bool
	ViewportChanged  bool
}

// Changed reports whether the model or view was touched.
func (o Outcome) Changed() bool {
	return o.Moved != "" || o.DragEnded != "" || o.Reverted != "" ||
		o.EdgeAdded != nil || o.SelectionChanged || o.ViewportChanged
}

// Option configures a Controller.
type Option func(*Controller)

// WithCapturer sets the host capture hook.
func WithCapturer(c Capturer) Option {
	return func(ctl *Controller) { ctl.capturer = c }
}

// WithLogger sets the logger used for rejected gestures.
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// Controller interprets pointer events. It is not safe for concurrent use.
type Controller struct {
	fsm         *machine
	graph       Graph
	view        Viewport
	capturer    Capturer
	release     func()
	logger      *slog.Logger
	connectMode bool
	connectType schema.EdgeType
}

// NewController creates a Controller in Idle with connect-mode off.
func NewController(g Graph, v Viewport, opts ...Option) *Controller {
	c := &Controller{
		fsm:         newMachine(),
		graph:       g,
		view:        v,
		logger:      slog.Default(),
		connectType: schema.EdgeTypeDefault,
	}
	for _, o := range opts {
		o(c)
	}
	c.fsm.OnAny(c.capture)
	return c
}

// capture acquires on leaving Idle and releases on returning to it.
func (c *Controller) capture(from, to Kind) {
	switch {
	case from == KindIdle && c.capturer != nil:
		c.release = c.capturer.Acquire()
	case to == KindIdle && c.release != nil:
		release := c.release
		c.release = nil
		release()
	}
}

// OnTransition registers a hook called after every change of gesture kind.
func (c *Controller) OnTransition(hook TransitionHook) {
	c.fsm.OnAny(hook)
}

// State returns the current gesture state.
func (c *Controller) State() State { return c.fsm.current() }

// ConnectMode reports whether pointer-down on a node connects instead of drags.
func (c *Controller) ConnectMode() bool { return c.connectMode }

// SetConnectMode toggles connect-mode. Turning it off drops a pending
// connection.
func (c *Controller) SetConnectMode(on bool) {
	c.connectMode = on
	if !on {
		if _, ok := c.State().(ConnectingFrom); ok {
			c.toIdle()
		}
	}
}

// SetConnectType sets the edge type used for gesture-made connections.
func (c *Controller) SetConnectType(t schema.EdgeType) {
	if t.IsValid() {
		c.connectType = t
	}
}

// PointerDown starts a gesture or completes a pending connection.
func (c *Controller) PointerDown(ev PointerEvent) Outcome {
	switch st := c.State().(type) {
	case Idle:
		return c.begin(ev)
	case ConnectingFrom:
		return c.completeConnection(st, ev)
	default:
		c.logger.Debug("gesture rejected", slog.String("active", string(st.Kind())), slog.String("target", ev.Target))
		return Outcome{Rejected: true}
	}
}

func (c *Controller) begin(ev PointerEvent) Outcome {
	logical := c.view.ScreenToLogical(ev.Screen)

	if ev.Target != "" {
		if ev.Button != ButtonPrimary {
			return Outcome{}
		}
		n, ok := c.graph.Node(ev.Target)
		if !ok {
			return Outcome{}
		}
		if c.connectMode {
			c.enter(ConnectingFrom{NodeID: n.ID, Cursor: logical})
			return Outcome{}
		}
		out := Outcome{SelectionChanged: true}
		switch {
		case ev.Shift:
			c.graph.ToggleSelect(n.ID)
		case !c.graph.IsSelected(n.ID):
			c.graph.Select(n.ID)
		default:
			out.SelectionChanged = false
		}
		c.enter(DraggingNode{NodeID: n.ID, StartMouse: ev.Screen, StartPos: n.Position})
		return out
	}

	switch {
	case ev.Button == ButtonMiddle || (ev.Button == ButtonPrimary && ev.Alt):
		c.enter(PanningCanvas{LastMouse: ev.Screen})
	case ev.Button == ButtonPrimary:
		c.enter(BoxSelecting{Start: logical, End: logical, Extend: ev.Shift})
	}
	return Outcome{}
}

func (c *Controller) completeConnection(st ConnectingFrom, ev PointerEvent) Outcome {
	c.toIdle()
	if ev.Target == "" || ev.Target == st.NodeID {
		return Outcome{}
	}
	e, ok := c.graph.AddEdge(st.NodeID, ev.Target, c.connectType)
	if !ok {
		return Outcome{}
	}
	return Outcome{EdgeAdded: &e}
}

// PointerMove updates the active gesture.
func (c *Controller) PointerMove(ev PointerEvent) Outcome {
	switch st := c.State().(type) {
	case DraggingNode:
		delta := ev.Screen.Sub(st.StartMouse).Scale(1 / c.view.Scale())
		if !c.graph.MoveNode(st.NodeID, st.StartPos.Add(delta)) {
			return Outcome{}
		}
		return Outcome{Moved: st.NodeID}
	case ConnectingFrom:
		st.Cursor = c.view.ScreenToLogical(ev.Screen)
		c.enter(st)
	case PanningCanvas:
		d := ev.Screen.Sub(st.LastMouse)
		c.view.Pan(d.X, d.Y)
		st.LastMouse = ev.Screen
		c.enter(st)
		return Outcome{ViewportChanged: true}
	case BoxSelecting:
		st.End = c.view.ScreenToLogical(ev.Screen)
		c.enter(st)
	}
	return Outcome{}
}

// PointerUp finishes a press gesture. A pending connection survives the
// release of its first click.
func (c *Controller) PointerUp(ev PointerEvent) Outcome {
	switch st := c.State().(type) {
	case DraggingNode:
		out := c.PointerMove(ev)
		c.toIdle()
		out.Moved = ""
		if c.alive(st.NodeID) {
			out.DragEnded = st.NodeID
		}
		return out
	case PanningCanvas:
		out := c.PointerMove(ev)
		c.toIdle()
		return out
	case BoxSelecting:
		st.End = c.view.ScreenToLogical(ev.Screen)
		c.toIdle()
		return c.applyBox(st)
	}
	return Outcome{}
}

// PointerLeave finalizes the active gesture when the pointer leaves the
// canvas: drags and box selections commit where they are, a pending
// connection is dropped.
func (c *Controller) PointerLeave() Outcome {
	switch st := c.State().(type) {
	case DraggingNode:
		c.toIdle()
		if !c.alive(st.NodeID) {
			return Outcome{}
		}
		return Outcome{DragEnded: st.NodeID}
	case BoxSelecting:
		c.toIdle()
		return c.applyBox(st)
	case PanningCanvas, ConnectingFrom:
		c.toIdle()
	}
	return Outcome{}
}

// Cancel aborts the active gesture: a drag snaps back to its start
// position, a box selection is discarded, a pending connection is dropped.
func (c *Controller) Cancel() Outcome {
	st := c.State()
	if st.Kind() == KindIdle {
		return Outcome{}
	}
	c.toIdle()
	if d, ok := st.(DraggingNode); ok && c.graph.MoveNode(d.NodeID, d.StartPos) {
		return Outcome{Reverted: d.NodeID}
	}
	return Outcome{}
}

// NodeRemoved drops a drag or pending connection that refers to id. The
// gesture ends without a commit. It reports whether a gesture was dropped.
func (c *Controller) NodeRemoved(id string) bool {
	switch st := c.State().(type) {
	case DraggingNode:
		if st.NodeID != id {
			return false
		}
	case ConnectingFrom:
		if st.NodeID != id {
			return false
		}
	default:
		return false
	}
	c.toIdle()
	return true
}

func (c *Controller) alive(id string) bool {
	_, ok := c.graph.Node(id)
	return ok
}

func (c *Controller) applyBox(st BoxSelecting) Outcome {
	ids := c.graph.NodesInRect(st.Rect(), schema.NodeFootprint)
	if st.Extend {
		c.graph.AddToSelection(ids...)
	} else {
		c.graph.Select(ids...)
	}
	return Outcome{SelectionChanged: true}
}

func (c *Controller) enter(s State) {
	if err := c.fsm.transition(s); err != nil {
		c.logger.Debug("gesture transition refused", slog.String("error", err.Error()))
	}
}

func (c *Controller) toIdle() {
	c.enter(Idle{})
}
