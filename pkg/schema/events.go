package schema

// Change event kinds published after every committed editor mutation.
const (
	EventNodeAdded        = "node.added"
	EventNodeRemoved      = "node.removed"
	EventNodeMoved        = "node.moved"
	EventNodeStatus       = "node.status"
	EventEdgeAdded        = "edge.added"
	EventEdgeRemoved      = "edge.removed"
	EventEdgeUpdated      = "edge.updated"
	EventSelectionChanged = "selection.changed"
	EventViewportChanged  = "viewport.changed"
	EventChainCleared     = "chain.cleared"
	EventChainLoaded      = "chain.loaded"
	EventLayoutApplied    = "layout.applied"
)
