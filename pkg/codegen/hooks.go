package codegen

import "sync"

// CreateScriptFunc rewrites the code that creates the script element. It
// receives the result of the previous tap.
type CreateScriptFunc func(code string, chunk Chunk) string

type tap struct {
	name string
	fn   CreateScriptFunc
}

// Hooks holds the extension points of the load-script runtime.
type Hooks struct {
	mu           sync.RWMutex
	createScript []tap
}

func NewHooks() *Hooks {
	return &Hooks{}
}

// TapCreateScript appends fn to the createScript waterfall.
func (h *Hooks) TapCreateScript(name string, fn CreateScriptFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.createScript = append(h.createScript, tap{name: name, fn: fn})
}

// CreateScript runs code through every tap in registration order.
func (h *Hooks) CreateScript(code string, chunk Chunk) string {
	if h == nil {
		return code
	}
	h.mu.RLock()
	taps := append([]tap(nil), h.createScript...)
	h.mu.RUnlock()

	for _, t := range taps {
		code = t.fn(code, chunk)
	}
	return code
}

// Taps lists the registered tap names.
func (h *Hooks) Taps() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, len(h.createScript))
	for i, t := range h.createScript {
		names[i] = t.name
	}
	return names
}
