// Package streaming fans out editor change events to in-process
// subscribers such as the autosaver and the MCP session.
package streaming

import "context"

// ChangeEvent describes one committed editor mutation.
type ChangeEvent struct {
	ChainID string   `json:"chain_id"`
	Kind    string   `json:"kind"`
	NodeIDs []string `json:"node_ids,omitempty"`
	EdgeIDs []string `json:"edge_ids,omitempty"`
	Payload any      `json:"payload,omitempty"`
	// Seq is assigned by the hub and increases across all chains.
	Seq uint64 `json:"seq"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	ChainID string   `json:"chain_id,omitempty"`
	Kinds   []string `json:"kinds,omitempty"`
}

// EventHub provides pub/sub for editor change events.
type EventHub interface {
	Publish(ctx context.Context, event ChangeEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan ChangeEvent, func(), error)
}
