package mcp

import (
	"sort"
	"sync"

	"github.com/rendis/attackchain/internal/editor"
)

// SessionRegistry maps chain IDs to open editor sessions.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*editor.Editor
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*editor.Editor)}
}

// Register adds an editor under its chain ID, replacing any previous one.
func (r *SessionRegistry) Register(ed *editor.Editor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[ed.ChainID()] = ed
}

// Get returns the open editor for a chain.
func (r *SessionRegistry) Get(chainID string) (*editor.Editor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ed, ok := r.sessions[chainID]
	return ed, ok
}

// Remove closes the session of a chain.
func (r *SessionRegistry) Remove(chainID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, chainID)
}

// IDs returns the open chain IDs in sorted order.
func (r *SessionRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
