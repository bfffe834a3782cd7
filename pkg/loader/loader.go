// Package loader loads script chunks on demand. A Runtime deduplicates
// concurrent requests for the same URL, owns the script elements it creates,
// and settles every waiter exactly once with load, error or timeout.
package loader

import (
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/withgalaxy/lazyload/pkg/config"
	"github.com/withgalaxy/lazyload/pkg/dom"
	"github.com/withgalaxy/lazyload/pkg/scripttag"
)

// Done receives the outcome of a load.
type Done func(dom.Event)

type Option func(*Runtime)

func WithClock(c clock.Clock) Option {
	return func(r *Runtime) { r.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Runtime) { r.log = l }
}

// WithScriptURLPolicy sets the trusted-types policy used when the
// createScriptUrl feature is enabled.
func WithScriptURLPolicy(fn func(string) string) Option {
	return func(r *Runtime) { r.scriptURL = fn }
}

type LoadOption func(*scripttag.Request)

// WithKey identifies the chunk across bundles; it also enables adopting an
// already attached element.
func WithKey(key string) LoadOption {
	return func(req *scripttag.Request) { req.Key = key }
}

func WithChunkID(id string) LoadOption {
	return func(req *scripttag.Request) { req.ChunkID = id }
}

func WithFetchPriority(p scripttag.FetchPriority) LoadOption {
	return func(req *scripttag.Request) { req.FetchPriority = p }
}

type inflight struct {
	req     scripttag.Request
	el      dom.Element
	created bool
	waiters []Done
	timer   *clock.Timer
	offs    []func()
	settled bool
}

type Runtime struct {
	cfg       *config.Config
	doc       dom.Document
	clock     clock.Clock
	log       zerolog.Logger
	scriptURL func(string) string

	mu         sync.Mutex
	inProgress map[string]*inflight
	loaded     *Registry
}

func New(cfg *config.Config, doc dom.Document, opts ...Option) *Runtime {
	r := &Runtime{
		cfg:        cfg,
		doc:        doc,
		clock:      clock.New(),
		log:        zerolog.Nop(),
		inProgress: make(map[string]*inflight),
		loaded:     newRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadedScripts exposes the read-only loaded-scripts registry.
func (r *Runtime) LoadedScripts() *Registry {
	return r.loaded
}

// Pending reports how many URLs currently have a load in flight.
func (r *Runtime) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inProgress)
}

// Load requests the script at url and calls done once it settles. Requests
// for a url already in flight join the existing waiter list. There are no
// retries; a failed url may simply be loaded again.
func (r *Runtime) Load(url string, done Done, opts ...LoadOption) {
	req := scripttag.Request{URL: url}
	for _, opt := range opts {
		opt(&req)
	}

	r.mu.Lock()
	if cur, ok := r.inProgress[url]; ok {
		cur.waiters = append(cur.waiters, done)
		r.mu.Unlock()
		r.log.Debug().Str("url", url).Int("waiters", len(cur.waiters)).Msg("joined pending script load")
		return
	}

	f := &inflight{req: req, waiters: []Done{done}}
	f.el = r.findExisting(req)
	if f.el == nil {
		f.created = true
		f.el = r.doc.CreateScript()
		scripttag.Build(r.cfg, req, scripttag.Env{
			PageURL:         r.doc.URL(),
			Nonce:           r.doc.Nonce(),
			CreateScriptURL: r.scriptURL,
		}).Apply(f.el)
	}

	r.inProgress[url] = f
	r.loaded.set(r.state(f, StatusPending))

	f.offs = append(f.offs,
		f.el.On(dom.EventError, func(ev dom.Event) { r.settle(f, ev) }),
		f.el.On(dom.EventLoad, func(ev dom.Event) { r.settle(f, ev) }),
	)
	r.mu.Unlock()

	if f.created {
		r.doc.Append(f.el)
	}

	// The timeout runs from attachment; a load that already settled while
	// being attached needs none.
	r.mu.Lock()
	if !f.settled {
		el := f.el
		f.timer = r.clock.AfterFunc(r.cfg.Output.LoadTimeout(), func() {
			r.settle(f, dom.Event{Type: dom.EventTimeout, Target: el})
		})
	}
	r.mu.Unlock()
	r.log.Debug().Str("url", url).Bool("adopted", !f.created).Msg("script load started")
}

// findExisting looks for an attached element the runtime can adopt. Only
// keyed requests search, matching either src or the identity attribute.
func (r *Runtime) findExisting(req scripttag.Request) dom.Element {
	if req.Key == "" {
		return nil
	}
	identity := scripttag.IdentityValue(r.cfg.Output.UniqueName, req.Key)
	for _, el := range r.doc.Scripts() {
		if src, ok := el.Attr(scripttag.AttrSrc); ok && src == req.URL {
			return el
		}
		if identity != "" {
			if v, ok := el.Attr(scripttag.AttrIdentity); ok && v == identity {
				return el
			}
		}
	}
	return nil
}

func (r *Runtime) settle(f *inflight, ev dom.Event) {
	r.mu.Lock()
	if f.settled {
		r.mu.Unlock()
		return
	}
	f.settled = true
	if f.timer != nil {
		f.timer.Stop()
	}
	for _, off := range f.offs {
		off()
	}
	f.offs = nil
	if r.inProgress[f.req.URL] == f {
		delete(r.inProgress, f.req.URL)
	}
	waiters := f.waiters
	f.waiters = nil
	r.loaded.set(r.state(f, statusFor(ev)))
	r.mu.Unlock()

	if f.created && ev.Failed() {
		r.doc.Remove(f.el)
	}

	level := zerolog.DebugLevel
	if ev.Failed() {
		level = zerolog.WarnLevel
	}
	r.log.WithLevel(level).Str("url", f.req.URL).Str("outcome", string(ev.Type)).Int("waiters", len(waiters)).Msg("script load settled")

	for _, fn := range waiters {
		if fn != nil {
			fn(ev)
		}
	}
}

func (r *Runtime) state(f *inflight, status ScriptStatus) ScriptState {
	return ScriptState{
		URL:       f.req.URL,
		Status:    status,
		Key:       f.req.Key,
		ChunkID:   f.req.ChunkID,
		Adopted:   !f.created,
		UpdatedAt: r.clock.Now(),
	}
}

func statusFor(ev dom.Event) ScriptStatus {
	switch ev.Type {
	case dom.EventLoad:
		return StatusLoaded
	case dom.EventTimeout:
		return StatusTimedOut
	default:
		return StatusFailed
	}
}
