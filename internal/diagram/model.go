package diagram

// NodeKind classifies a diagram node by its position in the chain.
type NodeKind string

const (
	NodeKindEntry     NodeKind = "entry"     // no upstream step
	NodeKindStep      NodeKind = "step"      // upstream and downstream steps
	NodeKindObjective NodeKind = "objective" // no downstream step
	NodeKindIsolated  NodeKind = "isolated"  // no connection at all
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title    string
	Nodes    []*Node
	Edges    []Edge
	Levels   [][]string
	Clusters []*Cluster
	Cyclic   bool // levels fell back to node order
	Summary  string
}

// Node represents a single technique in the diagram.
type Node struct {
	ID       string
	Label    string
	Kind     NodeKind
	Category string
	Severity string
	Status   string
	Minutes  string // "10-30m"
}

// Cluster groups the nodes of one template category.
type Cluster struct {
	Label   string
	NodeIDs []string
}

// Edge represents a connection between two nodes.
type Edge struct {
	From  string
	To    string
	Type  string
	Label string
}
