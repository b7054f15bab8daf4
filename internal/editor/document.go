package editor

import (
	"context"
	"log/slog"
	"time"

	"github.com/rendis/attackchain/internal/store"
	"github.com/rendis/attackchain/internal/streaming"
	"github.com/rendis/attackchain/pkg/schema"
)

// Document exports the chain as a portable document.
func (e *Editor) Document() *schema.ChainDocument {
	e.mu.Lock()
	defer e.unlock()
	return e.document()
}

func (e *Editor) document() *schema.ChainDocument {
	return &schema.ChainDocument{
		Version:     schema.DocumentVersion,
		ID:          e.chainID,
		Name:        e.name,
		Description: e.description,
		Objectives:  append([]string(nil), e.objectives...),
		Nodes:       e.graph.Nodes(),
		Edges:       e.graph.Edges(),
		Viewport:    e.view.State(),
	}
}

// LoadDocument replaces the session content with doc. The chain id is kept
// unless doc carries one. Edges violating the graph invariants are dropped
// and returned. The session is clean afterwards.
func (e *Editor) LoadDocument(doc *schema.ChainDocument) []schema.Edge {
	e.mu.Lock()
	defer e.unlock()

	e.ctl.Cancel()
	e.graph.Clear()
	skipped := e.graph.Restore(doc.Nodes, doc.Edges)
	e.view.Set(doc.Viewport)
	if doc.ID != "" && doc.ID != e.chainID {
		if e.metrics != nil {
			e.metrics.ForgetChain(e.chainID)
		}
		e.chainID = doc.ID
		e.ctx = contextFor(doc.ID)
	}
	e.name = doc.Name
	e.description = doc.Description
	e.objectives = append([]string(nil), doc.Objectives...)

	for _, s := range skipped {
		e.logger.WarnContext(e.ctx, "edge dropped on load",
			slog.String("edge_id", s.ID), slog.String("from", s.From), slog.String("to", s.To))
	}

	e.commit("load_document", streaming.ChangeEvent{Kind: schema.EventChainLoaded})
	e.dirty = false
	return skipped
}

// Snapshot returns a store record of the current chain and the change
// generation it reflects.
func (e *Editor) Snapshot() (*store.ChainRecord, uint64) {
	e.mu.Lock()
	defer e.unlock()
	return store.NewRecord(e.document(), e.stats, e.verdict), e.gen
}

// MarkSaved clears the dirty flag if nothing changed since generation gen
// was snapshotted.
func (e *Editor) MarkSaved(gen uint64) {
	e.mu.Lock()
	defer e.unlock()
	if e.gen == gen {
		e.dirty = false
	}
}

// Save writes the chain to st.
func (e *Editor) Save(ctx context.Context, st store.ChainStore) error {
	rec, gen := e.Snapshot()
	rec.Reason = "manual"

	start := time.Now()
	err := st.SaveChain(ctx, rec)
	if e.metrics != nil {
		e.metrics.RecordSave("manual", err, time.Since(start))
	}
	if err != nil {
		e.logger.ErrorContext(e.ctx, "save chain", slog.String("error", err.Error()))
		return err
	}
	e.MarkSaved(gen)
	return nil
}

// Open loads a stored chain into a new session.
func Open(ctx context.Context, st store.ChainStore, chainID string, opts ...Option) (*Editor, error) {
	rec, err := st.GetChain(ctx, chainID)
	if err != nil {
		return nil, err
	}
	e, err := New(append(opts, WithChainID(chainID))...)
	if err != nil {
		return nil, err
	}
	e.LoadDocument(rec.Document)
	return e, nil
}
