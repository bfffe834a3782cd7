package hmr

import (
	"sort"
	"sync"
)

// ActiveModules counts, per module key, how many keep-alive connections
// currently hold it.
type ActiveModules struct {
	mu   sync.RWMutex
	refs map[string]int
}

func NewActiveModules() *ActiveModules {
	return &ActiveModules{
		refs: make(map[string]int),
	}
}

func (a *ActiveModules) Acquire(keys []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, k := range keys {
		a.refs[k]++
	}
}

func (a *ActiveModules) Release(keys []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, k := range keys {
		if a.refs[k] <= 1 {
			delete(a.refs, k)
			continue
		}
		a.refs[k]--
	}
}

func (a *ActiveModules) IsActive(key string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.refs[key] > 0
}

func (a *ActiveModules) Refs(key string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.refs[key]
}

// Keys returns the active module keys in sorted order.
func (a *ActiveModules) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	keys := make([]string, 0, len(a.refs))
	for k := range a.refs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a *ActiveModules) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.refs = make(map[string]int)
}
