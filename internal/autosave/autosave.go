// Package autosave persists dirty editor sessions on a cron schedule. It
// learns which chains changed from the change-event hub, so idle sessions
// are never written.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/attackchain/internal/logging"
	"github.com/rendis/attackchain/internal/metrics"
	"github.com/rendis/attackchain/internal/store"
	"github.com/rendis/attackchain/internal/streaming"
	"github.com/rendis/attackchain/pkg/schema"
)

// DefaultSpec saves every thirty seconds.
const DefaultSpec = "@every 30s"

// Session is the part of an editor the autosaver needs.
// Satisfied by *editor.Editor (avoids import cycle).
type Session interface {
	ChainID() string
	Dirty() bool
	Snapshot() (*store.ChainRecord, uint64)
	MarkSaved(gen uint64)
}

// Option configures an Autosaver.
type Option func(*Autosaver)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(a *Autosaver) { a.logger = l } }

// WithMetrics records saves in r.
func WithMetrics(r *metrics.Registry) Option { return func(a *Autosaver) { a.metrics = r } }

// Autosaver writes registered sessions that changed since their last save.
type Autosaver struct {
	store    store.ChainStore
	parser   cron.Parser
	schedule cron.Schedule
	spec     string
	metrics  *metrics.Registry
	logger   *slog.Logger

	events      <-chan streaming.ChangeEvent
	unsubscribe func()

	pendingMu sync.Mutex
	sessions  map[string]Session
	pending   map[string]struct{} // chain ids with unsaved changes

	flushMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// New creates an Autosaver for st, subscribed to hub. spec is a cron
// expression with optional seconds or a descriptor such as "@every 30s".
func New(st store.ChainStore, hub streaming.EventHub, spec string, opts ...Option) (*Autosaver, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	a := &Autosaver{
		store:    st,
		parser:   cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		spec:     spec,
		logger:   slog.Default(),
		sessions: make(map[string]Session),
		pending:  make(map[string]struct{}),
	}
	for _, o := range opts {
		o(a)
	}

	schedule, err := a.parser.Parse(spec)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "parse autosave schedule %q: %s", spec, err.Error()).WithCause(err)
	}
	a.schedule = schedule

	events, unsubscribe, err := hub.Subscribe(context.Background(), streaming.EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("subscribe to change events: %w", err)
	}
	a.events = events
	a.unsubscribe = unsubscribe
	return a, nil
}

// Register adds a session. Sessions that are already dirty are queued for
// the next flush.
func (a *Autosaver) Register(s Session) {
	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()
	id := s.ChainID()
	a.sessions[id] = s
	if s.Dirty() {
		a.pending[id] = struct{}{}
	}
}

// Unregister removes a session. Unsaved changes are not written.
func (a *Autosaver) Unregister(chainID string) {
	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()
	delete(a.sessions, chainID)
	delete(a.pending, chainID)
}

// NextRun returns the next scheduled flush after from.
func (a *Autosaver) NextRun(from time.Time) time.Time {
	return a.schedule.Next(from)
}

// Pending returns how many chains wait for a save.
func (a *Autosaver) Pending() int {
	a.drain()
	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()
	return len(a.pending)
}

// Start launches the background loop.
func (a *Autosaver) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return fmt.Errorf("autosaver stopped")
	}
	if a.done != nil {
		a.mu.Unlock()
		return fmt.Errorf("autosaver already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.mu.Unlock()

	go a.loop(loopCtx)
	a.logger.Info("autosave started", slog.String("schedule", a.spec))
	return nil
}

func (a *Autosaver) loop(ctx context.Context) {
	defer close(a.done)

	timer := time.NewTimer(time.Until(a.schedule.Next(time.Now())))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.events:
			if !ok {
				return
			}
			a.mark(ev)
		case <-timer.C:
			if _, err := a.Flush(ctx); err != nil {
				a.logger.Error("autosave flush", slog.String("error", err.Error()))
			}
			timer.Reset(time.Until(a.schedule.Next(time.Now())))
		}
	}
}

// Flush saves every registered session with pending changes and returns
// how many were written. A failed save stays pending for the next flush.
func (a *Autosaver) Flush(ctx context.Context) (int, error) {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	a.drain()

	a.pendingMu.Lock()
	due := make([]Session, 0, len(a.pending))
	for id := range a.pending {
		delete(a.pending, id)
		if s, ok := a.sessions[id]; ok && s.Dirty() {
			due = append(due, s)
		}
	}
	a.pendingMu.Unlock()

	saved := 0
	var errs []error
	for _, s := range due {
		if err := a.save(ctx, s); err != nil {
			errs = append(errs, err)
			a.markID(s.ChainID())
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}

func (a *Autosaver) save(ctx context.Context, s Session) error {
	rec, gen := s.Snapshot()
	rec.Reason = "autosave"
	logCtx := logging.WithChainID(ctx, rec.ID)

	start := time.Now()
	err := a.store.SaveChain(ctx, rec)
	if a.metrics != nil {
		a.metrics.RecordSave("autosave", err, time.Since(start))
	}
	if err != nil {
		a.logger.ErrorContext(logCtx, "autosave failed", slog.String("error", err.Error()))
		return fmt.Errorf("autosave chain %q: %w", rec.ID, err)
	}
	s.MarkSaved(gen)
	a.logger.DebugContext(logCtx, "chain autosaved", slog.Int("nodes", rec.NodeCount))
	return nil
}

// drain consumes buffered events without blocking.
func (a *Autosaver) drain() {
	for {
		select {
		case ev, ok := <-a.events:
			if !ok {
				return
			}
			a.mark(ev)
		default:
			return
		}
	}
}

func (a *Autosaver) mark(ev streaming.ChangeEvent) {
	// Selection is not part of the document.
	if ev.Kind == schema.EventSelectionChanged || ev.ChainID == "" {
		return
	}
	a.markID(ev.ChainID)
}

func (a *Autosaver) markID(chainID string) {
	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()
	if _, ok := a.sessions[chainID]; ok {
		a.pending[chainID] = struct{}{}
	}
}

// Stop ends the loop, writes what is still pending and unsubscribes from
// the hub. It is safe to call more than once.
func (a *Autosaver) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	if a.cancel != nil {
		a.cancel()
		<-a.done
		a.cancel = nil
		a.done = nil
	}
	a.mu.Unlock()

	_, err := a.Flush(ctx)
	a.unsubscribe()
	a.logger.Info("autosave stopped")
	return err
}
