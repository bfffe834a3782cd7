package loader

import (
	"sync"
	"time"
)

type ScriptStatus string

const (
	StatusPending  ScriptStatus = "pending"
	StatusLoaded   ScriptStatus = "loaded"
	StatusFailed   ScriptStatus = "failed"
	StatusTimedOut ScriptStatus = "timed-out"
)

type ScriptState struct {
	URL       string
	Status    ScriptStatus
	Key       string
	ChunkID   string
	Adopted   bool
	UpdatedAt time.Time
}

// Registry is the loaded-scripts table consulted by lazy-compilation tooling.
// Only the Runtime that owns it writes to it.
type Registry struct {
	mu      sync.RWMutex
	scripts map[string]ScriptState
}

func newRegistry() *Registry {
	return &Registry{scripts: make(map[string]ScriptState)}
}

func (r *Registry) set(state ScriptState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[state.URL] = state
}

func (r *Registry) Lookup(url string) (ScriptState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scripts[url]
	return s, ok
}

// Loaded reports whether url finished loading successfully.
func (r *Registry) Loaded(url string) bool {
	s, ok := r.Lookup(url)
	return ok && s.Status == StatusLoaded
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scripts)
}

// Snapshot returns a copy of the table.
func (r *Registry) Snapshot() map[string]ScriptState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]ScriptState, len(r.scripts))
	for k, v := range r.scripts {
		out[k] = v
	}
	return out
}
