package editor

import (
	"github.com/rendis/attackchain/internal/interaction"
	"github.com/rendis/attackchain/internal/streaming"
	"github.com/rendis/attackchain/pkg/schema"
)

// PointerDown forwards a pointer press to the gesture controller.
func (e *Editor) PointerDown(ev interaction.PointerEvent) interaction.Outcome {
	e.mu.Lock()
	defer e.unlock()
	out := e.ctl.PointerDown(ev)
	e.apply("pointer_down", out)
	return out
}

// PointerMove forwards pointer motion to the active gesture.
func (e *Editor) PointerMove(ev interaction.PointerEvent) interaction.Outcome {
	e.mu.Lock()
	defer e.unlock()
	out := e.ctl.PointerMove(ev)
	e.apply("pointer_move", out)
	return out
}

// PointerUp ends the active press gesture.
func (e *Editor) PointerUp(ev interaction.PointerEvent) interaction.Outcome {
	e.mu.Lock()
	defer e.unlock()
	out := e.ctl.PointerUp(ev)
	e.apply("pointer_up", out)
	return out
}

// PointerLeave finalizes the active gesture when the pointer leaves the
// canvas or is released outside it.
func (e *Editor) PointerLeave() interaction.Outcome {
	e.mu.Lock()
	defer e.unlock()
	out := e.ctl.PointerLeave()
	e.apply("pointer_leave", out)
	return out
}

// Cancel aborts the active gesture.
func (e *Editor) Cancel() interaction.Outcome {
	e.mu.Lock()
	defer e.unlock()
	out := e.ctl.Cancel()
	e.apply("cancel", out)
	return out
}

// ConnectMode reports whether node presses connect instead of drag.
func (e *Editor) ConnectMode() bool {
	e.mu.Lock()
	defer e.unlock()
	return e.ctl.ConnectMode()
}

// SetConnectMode toggles connect-mode.
func (e *Editor) SetConnectMode(on bool) {
	e.mu.Lock()
	defer e.unlock()
	e.ctl.SetConnectMode(on)
}

// SetConnectType sets the type of edges created by the connect gesture.
func (e *Editor) SetConnectType(t schema.EdgeType) {
	e.mu.Lock()
	defer e.unlock()
	e.ctl.SetConnectType(t)
}

// apply turns a gesture outcome into recomputes and change events. Drag
// motion is published as it happens but only the end of the drag
// recomputes.
func (e *Editor) apply(command string, out interaction.Outcome) {
	if out.Rejected {
		e.record(command, false)
		return
	}
	if out.Moved != "" {
		e.touch()
		e.publish(streaming.ChangeEvent{Kind: schema.EventNodeMoved, NodeIDs: []string{out.Moved}})
	}
	if id := out.DragEnded; id != "" {
		e.commit("drag_node", streaming.ChangeEvent{Kind: schema.EventNodeMoved, NodeIDs: []string{id}})
	}
	if id := out.Reverted; id != "" {
		e.commit("drag_cancel", streaming.ChangeEvent{Kind: schema.EventNodeMoved, NodeIDs: []string{id}})
	}
	if edge := out.EdgeAdded; edge != nil {
		e.commit("connect", streaming.ChangeEvent{
			Kind:    schema.EventEdgeAdded,
			NodeIDs: []string{edge.From, edge.To},
			EdgeIDs: []string{edge.ID},
		})
	}
	if out.SelectionChanged {
		e.publishSelection()
	}
	if out.ViewportChanged {
		e.touch()
		e.publish(streaming.ChangeEvent{Kind: schema.EventViewportChanged, Payload: e.view.State()})
	}
}
