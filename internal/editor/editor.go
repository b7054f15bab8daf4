// Package editor is the session facade of an attack chain: it owns the
// graph, the viewport and the gesture controller, and keeps the derived
// stats and verdict current after every committed change.
package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/attackchain/internal/expressions"
	"github.com/rendis/attackchain/internal/graph"
	"github.com/rendis/attackchain/internal/interaction"
	"github.com/rendis/attackchain/internal/logging"
	"github.com/rendis/attackchain/internal/metrics"
	"github.com/rendis/attackchain/internal/stats"
	"github.com/rendis/attackchain/internal/streaming"
	"github.com/rendis/attackchain/internal/validation"
	"github.com/rendis/attackchain/internal/viewport"
	"github.com/rendis/attackchain/pkg/schema"
)

// Option configures an Editor.
type Option func(*config)

type config struct {
	chainID  string
	name     string
	hub      streaming.EventHub
	metrics  *metrics.Registry
	logger   *slog.Logger
	capturer interaction.Capturer
	newID    func(prefix string) string
	viewSize schema.Size
}

// WithChainID sets the chain id. A random UUID is used otherwise.
func WithChainID(id string) Option { return func(c *config) { c.chainID = id } }

// WithName sets the initial chain name.
func WithName(name string) Option { return func(c *config) { c.name = name } }

// WithHub publishes change events to hub.
func WithHub(hub streaming.EventHub) Option { return func(c *config) { c.hub = hub } }

// WithMetrics records commands, gestures and recomputes in r.
func WithMetrics(r *metrics.Registry) Option { return func(c *config) { c.metrics = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// WithCapturer sets the host pointer-capture hook for gestures. Acquire
// and release run after the editor lock is dropped, so the hook may call
// Editor methods.
func WithCapturer(cp interaction.Capturer) Option { return func(c *config) { c.capturer = cp } }

// WithIDGenerator overrides node and edge id generation.
func WithIDGenerator(fn func(prefix string) string) Option { return func(c *config) { c.newID = fn } }

// WithViewSize sets the screen size used by FitToContent when none is given.
func WithViewSize(s schema.Size) Option { return func(c *config) { c.viewSize = s } }

// DefaultViewSize is the canvas size assumed when the host never reports one.
var DefaultViewSize = schema.Size{Width: 1280, Height: 800}

// Editor is one open attack chain. All methods are safe for concurrent use;
// each call runs to completion under the session lock, so derived state
// always reflects the latest committed mutation.
type Editor struct {
	mu sync.Mutex

	chainID     string
	name        string
	description string
	objectives  []string

	graph   *graph.Model
	view    *viewport.Transform
	ctl     *interaction.Controller
	capture *deferredCapture
	cel     *expressions.CELEngine

	viewSize schema.Size
	stats    schema.Stats
	verdict  schema.Verdict
	dirty    bool
	gen      uint64

	hub     streaming.EventHub
	metrics *metrics.Registry
	logger  *slog.Logger
	ctx     context.Context
}

// New creates an empty editor session.
func New(opts ...Option) (*Editor, error) {
	cfg := config{
		logger:   slog.Default(),
		viewSize: DefaultViewSize,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.chainID == "" {
		cfg.chainID = uuid.New().String()
	}

	cel, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}

	var gopts []graph.Option
	if cfg.newID != nil {
		gopts = append(gopts, graph.WithIDGenerator(cfg.newID))
	}

	e := &Editor{
		chainID:  cfg.chainID,
		name:     cfg.name,
		graph:    graph.New(gopts...),
		view:     viewport.New(),
		cel:      cel,
		viewSize: cfg.viewSize,
		hub:      cfg.hub,
		metrics:  cfg.metrics,
		logger:   cfg.logger,
		ctx:      contextFor(cfg.chainID),
	}

	ctlOpts := []interaction.Option{interaction.WithLogger(cfg.logger)}
	if cfg.capturer != nil {
		e.capture = &deferredCapture{host: cfg.capturer}
		ctlOpts = append(ctlOpts, interaction.WithCapturer(e.capture))
	}
	e.ctl = interaction.NewController(e.graph, e.view, ctlOpts...)
	e.ctl.OnTransition(e.onGesture)

	e.recompute()
	return e, nil
}

func contextFor(chainID string) context.Context {
	return logging.WithChainID(context.Background(), chainID)
}

func (e *Editor) onGesture(from, to interaction.Kind) {
	if from != interaction.KindIdle {
		return
	}
	if e.metrics != nil {
		e.metrics.RecordGesture(string(to))
	}
	e.logger.DebugContext(logging.WithGesture(e.ctx, string(to)), "gesture started")
}

// --- queries ---

// ChainID returns the chain id.
func (e *Editor) ChainID() string {
	e.mu.Lock()
	defer e.unlock()
	return e.chainID
}

// Name returns the chain name.
func (e *Editor) Name() string {
	e.mu.Lock()
	defer e.unlock()
	return e.name
}

// Objectives returns the chain objectives in insertion order.
func (e *Editor) Objectives() []string {
	e.mu.Lock()
	defer e.unlock()
	return append([]string(nil), e.objectives...)
}

// Nodes returns a snapshot of all nodes ordered by Order.
func (e *Editor) Nodes() []schema.Node {
	e.mu.Lock()
	defer e.unlock()
	return e.graph.Nodes()
}

// Node returns a snapshot of one node.
func (e *Editor) Node(id string) (schema.Node, bool) {
	e.mu.Lock()
	defer e.unlock()
	return e.graph.Node(id)
}

// Edges returns a snapshot of all edges in creation order.
func (e *Editor) Edges() []schema.Edge {
	e.mu.Lock()
	defer e.unlock()
	return e.graph.Edges()
}

// Viewport returns the current pan/zoom transform.
func (e *Editor) Viewport() schema.ViewportState {
	e.mu.Lock()
	defer e.unlock()
	return e.view.State()
}

// Selection returns the selected node ids in selection order.
func (e *Editor) Selection() []string {
	e.mu.Lock()
	defer e.unlock()
	return e.graph.Selection()
}

// ValidationStatus returns the verdict computed after the last commit.
func (e *Editor) ValidationStatus() schema.Verdict {
	e.mu.Lock()
	defer e.unlock()
	return e.verdict
}

// Stats returns the stats computed after the last commit.
func (e *Editor) Stats() schema.Stats {
	e.mu.Lock()
	defer e.unlock()
	st := e.stats
	if st.SeverityCounts != nil {
		counts := make(map[schema.Severity]int, len(st.SeverityCounts))
		for k, v := range st.SeverityCounts {
			counts[k] = v
		}
		st.SeverityCounts = counts
	}
	return st
}

// Inspect returns the detailed validation report of the current chain.
func (e *Editor) Inspect() *schema.ValidationResult {
	e.mu.Lock()
	defer e.unlock()
	return validation.Inspect(e.graph.Nodes(), e.graph.Edges(), e.cel)
}

// Gesture returns the active gesture state.
func (e *Editor) Gesture() interaction.State {
	e.mu.Lock()
	defer e.unlock()
	return e.ctl.State()
}

// Dirty reports whether the chain changed since it was loaded or saved.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.unlock()
	return e.dirty
}

// --- commit plumbing (callers hold e.mu) ---

// recompute refreshes stats and verdict from the current graph.
func (e *Editor) recompute() {
	start := time.Now()
	nodes, edges := e.graph.Nodes(), e.graph.Edges()
	e.stats = stats.Compute(nodes, edges)
	e.verdict = validation.Verdict(nodes, edges)
	if e.metrics != nil {
		e.metrics.RecordRecompute(e.chainID, len(nodes), len(edges), string(e.verdict), time.Since(start))
	}
}

func (e *Editor) touch() {
	e.dirty = true
	e.gen++
}

// commit finishes a structural mutation.
func (e *Editor) commit(command string, ev streaming.ChangeEvent) {
	e.recompute()
	e.touch()
	e.record(command, true)
	e.publish(ev)
}

func (e *Editor) record(command string, applied bool) {
	if e.metrics != nil {
		e.metrics.RecordCommand(command, applied)
	}
	if !applied {
		e.logger.DebugContext(e.ctx, "command rejected", slog.String("command", command))
	}
}

func (e *Editor) publish(ev streaming.ChangeEvent) {
	ev.ChainID = e.chainID
	if e.metrics != nil {
		e.metrics.RecordEvent(ev.Kind)
	}
	if e.hub == nil {
		return
	}
	if err := e.hub.Publish(e.ctx, ev); err != nil {
		e.logger.WarnContext(e.ctx, "publish change event", slog.String("kind", ev.Kind), slog.String("error", err.Error()))
	}
}
