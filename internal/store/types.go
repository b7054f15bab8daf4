package store

import (
	"time"

	"github.com/rendis/attackchain/pkg/schema"
)

// ChainRecord is a persisted chain: the full document plus the summary
// columns used for listing without decoding documents.
type ChainRecord struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Description  string                `json:"description,omitempty"`
	Document     *schema.ChainDocument `json:"document"`
	NodeCount    int                   `json:"node_count"`
	EdgeCount    int                   `json:"edge_count"`
	TotalMinutes int                   `json:"total_minutes"`
	RiskLevel    schema.Severity       `json:"risk_level"`
	Verdict      schema.Verdict        `json:"verdict"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`

	// Reason is recorded on the revision written by SaveChain.
	Reason string `json:"-"`
}

// NewRecord builds a record for doc with the given summary.
func NewRecord(doc *schema.ChainDocument, st schema.Stats, verdict schema.Verdict) *ChainRecord {
	return &ChainRecord{
		ID:           doc.ID,
		Name:         doc.Name,
		Description:  doc.Description,
		Document:     doc,
		NodeCount:    st.NodeCount,
		EdgeCount:    st.EdgeCount,
		TotalMinutes: st.TotalMinutes,
		RiskLevel:    st.RiskLevel,
		Verdict:      verdict,
	}
}

// Revision is an immutable snapshot written on every save.
type Revision struct {
	ID        int64                 `json:"id"`
	ChainID   string                `json:"chain_id"`
	Sequence  int64                 `json:"sequence"`
	Document  *schema.ChainDocument `json:"document"`
	Reason    string                `json:"reason,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

// ChainFilter specifies criteria for listing chains.
type ChainFilter struct {
	NameContains string          `json:"name_contains,omitempty"`
	RiskLevel    schema.Severity `json:"risk_level,omitempty"`
	Verdict      schema.Verdict  `json:"verdict,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}
