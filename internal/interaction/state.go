package interaction

import "github.com/rendis/attackchain/pkg/schema"

// Kind names a gesture state.
type Kind string

const (
	KindIdle         Kind = "idle"
	KindDragging     Kind = "dragging_node"
	KindConnecting   Kind = "connecting_from"
	KindPanning      Kind = "panning_canvas"
	KindBoxSelecting Kind = "box_selecting"
)

// State is the gesture state. It is a closed union: the concrete types
// below are the only implementations, so two gestures can never be active
// at the same time.
type State interface {
	Kind() Kind
	sealed()
}

// Idle is the resting state.
type Idle struct{}

// DraggingNode moves one node. StartMouse is in screen pixels, StartPos in
// logical units.
type DraggingNode struct {
	NodeID     string
	StartMouse schema.Point
	StartPos   schema.Point
}

// ConnectingFrom is armed by the first click of the two-click connect
// protocol. Cursor is the last pointer position in logical units, used by
// the host to draw the rubber-band line.
type ConnectingFrom struct {
	NodeID string
	Cursor schema.Point
}

// PanningCanvas drags the viewport. LastMouse is in screen pixels.
type PanningCanvas struct {
	LastMouse schema.Point
}

// BoxSelecting tracks a selection rectangle in logical units. Extend keeps
// the existing selection.
type BoxSelecting struct {
	Start  schema.Point
	End    schema.Point
	Extend bool
}

func (Idle) Kind() Kind           { return KindIdle }
func (DraggingNode) Kind() Kind   { return KindDragging }
func (ConnectingFrom) Kind() Kind { return KindConnecting }
func (PanningCanvas) Kind() Kind  { return KindPanning }
func (BoxSelecting) Kind() Kind   { return KindBoxSelecting }

func (Idle) sealed()           {}
func (DraggingNode) sealed()   {}
func (ConnectingFrom) sealed() {}
func (PanningCanvas) sealed()  {}
func (BoxSelecting) sealed()   {}

// Rect returns the normalized selection rectangle.
func (b BoxSelecting) Rect() schema.Rect {
	return schema.NewRect(b.Start, b.End)
}
