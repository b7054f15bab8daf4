package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/attackchain/internal/streaming"
	"github.com/rendis/attackchain/pkg/schema"
)

// ClientNotifier is the part of the MCP server used to push notifications.
type ClientNotifier interface {
	SendNotificationToAllClients(method string, params map[string]any)
}

// ChangeNotifier forwards chain change events to connected MCP clients.
// Best-effort: events are dropped when no client is connected.
type ChangeNotifier struct {
	clients ClientNotifier
	hub     streaming.EventHub
	logger  *slog.Logger

	mu          sync.Mutex
	unsubscribe func()
	done        chan struct{}
}

// NewChangeNotifier creates a notifier that pushes hub events to clients.
func NewChangeNotifier(clients ClientNotifier, hub streaming.EventHub, logger *slog.Logger) *ChangeNotifier {
	return &ChangeNotifier{clients: clients, hub: hub, logger: logger}
}

var _ ClientNotifier = (*server.MCPServer)(nil)

// Start subscribes to every change event except selection changes.
func (n *ChangeNotifier) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.done != nil {
		return fmt.Errorf("notifier already started")
	}

	filter := streaming.EventFilter{Kinds: []string{
		schema.EventNodeAdded, schema.EventNodeRemoved, schema.EventNodeMoved, schema.EventNodeStatus,
		schema.EventEdgeAdded, schema.EventEdgeRemoved, schema.EventEdgeUpdated,
		schema.EventChainCleared, schema.EventChainLoaded, schema.EventLayoutApplied,
	}}
	events, unsubscribe, err := n.hub.Subscribe(ctx, filter)
	if err != nil {
		return fmt.Errorf("subscribe to change events: %w", err)
	}
	n.unsubscribe = unsubscribe
	n.done = make(chan struct{})

	go n.forward(events, n.done)
	return nil
}

func (n *ChangeNotifier) forward(events <-chan streaming.ChangeEvent, done chan struct{}) {
	defer close(done)
	for ev := range events {
		n.clients.SendNotificationToAllClients("notifications/message", map[string]any{
			"level":  "info",
			"logger": "attackchain",
			"data": map[string]any{
				"chain_id": ev.ChainID,
				"kind":     ev.Kind,
				"node_ids": ev.NodeIDs,
				"edge_ids": ev.EdgeIDs,
				"seq":      ev.Seq,
			},
		})
		n.logger.Debug("change event forwarded", slog.String("chain_id", ev.ChainID), slog.String("kind", ev.Kind))
	}
}

// Stop unsubscribes and waits for the forwarder to drain.
func (n *ChangeNotifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.done == nil {
		return
	}
	n.unsubscribe()
	<-n.done
	n.done = nil
}
