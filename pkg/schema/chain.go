package schema

import "fmt"

// Severity is a node's risk classification.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityWeights = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// IsValid returns true if the severity level is known.
func (s Severity) IsValid() bool {
	_, ok := severityWeights[s]
	return ok
}

// Weight returns an ordinal for comparisons; 0 for unknown levels.
func (s Severity) Weight() int {
	return severityWeights[s]
}

// ParseSeverity parses a string into a Severity value.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.IsValid() {
		return "", fmt.Errorf("invalid severity: %s", s)
	}
	return sev, nil
}

// NodeStatus is the execution state shown on a placed module.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusError     NodeStatus = "error"
)

// IsValid returns true if the status is known.
func (s NodeStatus) IsValid() bool {
	switch s {
	case NodeStatusPending, NodeStatusRunning, NodeStatusCompleted, NodeStatusError:
		return true
	}
	return false
}

// EdgeType classifies a connection between two nodes.
type EdgeType string

const (
	EdgeTypeDefault     EdgeType = "default"
	EdgeTypeSuccess     EdgeType = "success"
	EdgeTypeError       EdgeType = "error"
	EdgeTypeSequence    EdgeType = "sequence"
	EdgeTypeParallel    EdgeType = "parallel"
	EdgeTypeConditional EdgeType = "conditional"
)

// IsValid returns true if the edge type is known.
func (t EdgeType) IsValid() bool {
	switch t {
	case EdgeTypeDefault, EdgeTypeSuccess, EdgeTypeError, EdgeTypeSequence, EdgeTypeParallel, EdgeTypeConditional:
		return true
	}
	return false
}

// TimeRange is an estimated duration window in minutes.
type TimeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r TimeRange) String() string {
	if r.Min == r.Max {
		return fmt.Sprintf("%dm", r.Max)
	}
	return fmt.Sprintf("%d-%dm", r.Min, r.Max)
}

// TemplateRef is the catalog data a node carries with it once placed.
type TemplateRef struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Severity      Severity  `json:"severity"`
	Icon          string    `json:"icon,omitempty"`
	EstimatedTime TimeRange `json:"estimated_time"`
	Prerequisites []string  `json:"prerequisites,omitempty"`
	Payloads      []string  `json:"payloads,omitempty"`
	Techniques    []string  `json:"techniques,omitempty"`
}

// Node is a placed instance of a catalog template. Position is logical.
type Node struct {
	ID       string      `json:"id"`
	Template TemplateRef `json:"template"`
	Position Point       `json:"position"`
	Order    int         `json:"order"`
	Status   NodeStatus  `json:"status"`
}

// Edge is a directed connection between two live nodes.
type Edge struct {
	ID    string   `json:"id"`
	From  string   `json:"from"`
	To    string   `json:"to"`
	Type  EdgeType `json:"type"`
	Label string   `json:"label,omitempty"`
}

// ViewportState is the pan/zoom transform. Offset is in screen pixels.
type ViewportState struct {
	Scale  float64 `json:"scale"`
	Offset Point   `json:"offset"`
}

// Verdict is the coarse structural health of a chain.
type Verdict string

const (
	VerdictValid   Verdict = "valid"
	VerdictWarning Verdict = "warning"
	VerdictError   Verdict = "error"
)

// Stats are the derived duration and risk figures for a chain.
//
// TotalMinutes is the serial sum of every node's upper estimate. The
// critical path is reported separately and does not feed Duration.
type Stats struct {
	NodeCount           int              `json:"node_count"`
	EdgeCount           int              `json:"edge_count"`
	TotalMinutes        int              `json:"total_minutes"`
	Duration            string           `json:"duration"`
	RiskLevel           Severity         `json:"risk_level"`
	CriticalPathMinutes int              `json:"critical_path_minutes"`
	SeverityCounts      map[Severity]int `json:"severity_counts,omitempty"`
}

// DocumentVersion is the current chain document format version.
const DocumentVersion = 1

// ChainDocument is the portable JSON form of an attack chain.
type ChainDocument struct {
	Version     int           `json:"version"`
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Objectives  []string      `json:"objectives,omitempty"`
	Nodes       []Node        `json:"nodes"`
	Edges       []Edge        `json:"edges"`
	Viewport    ViewportState `json:"viewport"`
}
