package mcp

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/attackchain/internal/streaming"
	"github.com/rendis/attackchain/pkg/schema"
)

type recordedNotification struct {
	method string
	params map[string]any
}

type fakeClients struct {
	mu   sync.Mutex
	sent []recordedNotification
}

func (f *fakeClients) SendNotificationToAllClients(method string, params map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, recordedNotification{method: method, params: params})
}

func (f *fakeClients) snapshot() []recordedNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedNotification(nil), f.sent...)
}

func TestChangeNotifier_ForwardsChanges(t *testing.T) {
	ctx := context.Background()
	hub := streaming.NewMemoryHub()
	clients := &fakeClients{}
	n := NewChangeNotifier(clients, hub, slog.Default())
	require.NoError(t, n.Start(ctx))
	require.Error(t, n.Start(ctx), "second start")

	require.NoError(t, hub.Publish(ctx, streaming.ChangeEvent{ChainID: "c1", Kind: schema.EventSelectionChanged}))
	require.NoError(t, hub.Publish(ctx, streaming.ChangeEvent{ChainID: "c1", Kind: schema.EventNodeAdded, NodeIDs: []string{"n1"}}))

	require.Eventually(t, func() bool { return len(clients.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	n.Stop()
	n.Stop()
	assert.Zero(t, hub.Subscribers())

	got := clients.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "notifications/message", got[0].method)
	data, ok := got[0].params["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "c1", data["chain_id"])
	assert.Equal(t, schema.EventNodeAdded, data["kind"])
	assert.Equal(t, []string{"n1"}, data["node_ids"])
}
