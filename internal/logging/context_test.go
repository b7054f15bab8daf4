package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "", ChainID(ctx))
	assert.Equal(t, "", NodeID(ctx))
	assert.Equal(t, "", Gesture(ctx))

	ctx = WithChainID(ctx, "chain-123")
	ctx = WithNodeID(ctx, "node-1")
	ctx = WithGesture(ctx, "dragging_node")

	assert.Equal(t, "chain-123", ChainID(ctx))
	assert.Equal(t, "node-1", NodeID(ctx))
	assert.Equal(t, "dragging_node", Gesture(ctx))
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithNodeID(WithChainID(context.Background(), "chain-abc"), "node-x")
	LogWith(ctx, logger).Info("test message")

	output := buf.String()
	assert.Contains(t, output, "chain_id=chain-abc")
	assert.Contains(t, output, "node_id=node-x")
	assert.NotContains(t, output, "gesture")
	assert.Contains(t, output, "test message")
}

func TestLogWithEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogWith(context.Background(), logger).Info("no context")

	output := buf.String()
	assert.NotContains(t, output, "chain_id")
	assert.Contains(t, output, "no context")
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	ctx := WithGesture(WithChainID(context.Background(), "chain-auto"), "box_selecting")
	logger.InfoContext(ctx, "auto inject")

	output := buf.String()
	assert.Contains(t, output, `"chain_id":"chain-auto"`)
	assert.Contains(t, output, `"gesture":"box_selecting"`)
	assert.NotContains(t, output, "node_id")
}

func TestCorrelationHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := NewCorrelationHandler(inner)
	logger := slog.New(handler.WithAttrs([]slog.Attr{slog.String("component", "editor")}).WithGroup("cmd"))

	logger.InfoContext(WithChainID(context.Background(), "chain-attr"), "with attrs", "name", "add_node")

	output := buf.String()
	assert.Contains(t, output, `"component":"editor"`)
	assert.Contains(t, output, "chain-attr")
	assert.Contains(t, output, `"name":"add_node"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn)

	logger.InfoContext(context.Background(), "hidden")
	logger.WarnContext(WithChainID(context.Background(), "c1"), "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "chain_id=c1")
}
