// Package logging carries chain correlation ids through context.Context
// and into slog records.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type ctxKey int

const (
	chainIDKey ctxKey = iota
	nodeIDKey
	gestureKey
)

// attribute names, in emission order
var correlationKeys = []struct {
	key  ctxKey
	attr string
}{
	{chainIDKey, "chain_id"},
	{nodeIDKey, "node_id"},
	{gestureKey, "gesture"},
}

// WithChainID returns a context with the chain ID set.
func WithChainID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, chainIDKey, id)
}

// WithNodeID returns a context with the node ID set.
func WithNodeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, nodeIDKey, id)
}

// WithGesture returns a context tagged with the active gesture kind.
func WithGesture(ctx context.Context, gesture string) context.Context {
	return context.WithValue(ctx, gestureKey, gesture)
}

func ChainID(ctx context.Context) string { return value(ctx, chainIDKey) }
func NodeID(ctx context.Context) string  { return value(ctx, nodeIDKey) }
func Gesture(ctx context.Context) string { return value(ctx, gestureKey) }

func value(ctx context.Context, k ctxKey) string {
	v, _ := ctx.Value(k).(string)
	return v
}

func attrs(ctx context.Context) []slog.Attr {
	var out []slog.Attr
	for _, ck := range correlationKeys {
		if v := value(ctx, ck.key); v != "" {
			out = append(out, slog.String(ck.attr, v))
		}
	}
	return out
}

// LogWith returns a logger enriched with correlation IDs from the context.
// Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	for _, a := range attrs(ctx) {
		logger = logger.With(a)
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, injecting correlation IDs from
// the context into every record logged with a *Context method.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation ID injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(attrs(ctx)...)
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New builds a text logger with correlation injection.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewCorrelationHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
