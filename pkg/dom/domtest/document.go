// Package domtest provides an in-memory dom.Document. Nothing loads by
// itself: tests call Fire on an element, or install an append hook that
// settles elements as they are attached.
package domtest

import (
	"sync"

	"github.com/withgalaxy/lazyload/pkg/dom"
)

type Element struct {
	mu       sync.Mutex
	attrs    map[string]string
	order    []string
	handlers map[dom.EventType][]*handler
	nextID   int
}

type handler struct {
	id int
	fn func(dom.Event)
}

func NewElement() *Element {
	return &Element{
		attrs:    make(map[string]string),
		handlers: make(map[dom.EventType][]*handler),
	}
}

func (e *Element) Attr(name string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.attrs[name]
	return v, ok
}

func (e *Element) SetAttr(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.attrs[name]; !ok {
		e.order = append(e.order, name)
	}
	e.attrs[name] = value
}

// AttrNames lists attribute names in the order they were first set.
func (e *Element) AttrNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

func (e *Element) On(t dom.EventType, fn func(dom.Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	h := &handler{id: e.nextID, fn: fn}
	e.handlers[t] = append(e.handlers[t], h)

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		list := e.handlers[t]
		for i, cur := range list {
			if cur.id == h.id {
				e.handlers[t] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Listeners reports how many handlers are registered for t.
func (e *Element) Listeners(t dom.EventType) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[t])
}

// Fire dispatches an event of type t to the handlers registered at call time.
func (e *Element) Fire(t dom.EventType, message string) {
	e.mu.Lock()
	list := append([]*handler(nil), e.handlers[t]...)
	e.mu.Unlock()

	ev := dom.Event{Type: t, Target: e, Message: message}
	for _, h := range list {
		h.fn(ev)
	}
}

type Document struct {
	mu       sync.Mutex
	url      string
	nonce    string
	attached []*Element
	created  int
	onAppend func(*Element)
}

func NewDocument(pageURL string) *Document {
	return &Document{url: pageURL}
}

func (d *Document) SetNonce(nonce string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nonce = nonce
}

// OnAppend installs a hook called, outside the document lock, every time an
// element is attached.
func (d *Document) OnAppend(fn func(*Element)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onAppend = fn
}

func (d *Document) Scripts() []dom.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]dom.Element, 0, len(d.attached))
	for _, el := range d.attached {
		out = append(out, el)
	}
	return out
}

func (d *Document) CreateScript() dom.Element {
	d.mu.Lock()
	d.created++
	d.mu.Unlock()
	return NewElement()
}

func (d *Document) Append(el dom.Element) {
	e := el.(*Element)
	d.mu.Lock()
	d.attached = append(d.attached, e)
	hook := d.onAppend
	d.mu.Unlock()

	if hook != nil {
		hook(e)
	}
}

func (d *Document) Remove(el dom.Element) {
	e := el.(*Element)
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, cur := range d.attached {
		if cur == e {
			d.attached = append(d.attached[:i:i], d.attached[i+1:]...)
			return
		}
	}
}

func (d *Document) URL() string {
	return d.url
}

func (d *Document) Nonce() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nonce
}

// Inject attaches an element the runtime did not create, as a server-rendered
// page or another bundle would.
func (d *Document) Inject(attrs map[string]string) *Element {
	e := NewElement()
	for k, v := range attrs {
		e.SetAttr(k, v)
	}
	d.mu.Lock()
	d.attached = append(d.attached, e)
	d.mu.Unlock()
	return e
}

// Created is the number of elements handed out by CreateScript.
func (d *Document) Created() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created
}

func (d *Document) Attached(el dom.Element) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cur := range d.attached {
		if dom.Element(cur) == el {
			return true
		}
	}
	return false
}

// FindBySrc returns the attached elements whose src equals src.
func (d *Document) FindBySrc(src string) []*Element {
	d.mu.Lock()
	list := append([]*Element(nil), d.attached...)
	d.mu.Unlock()

	var out []*Element
	for _, el := range list {
		if v, ok := el.Attr("src"); ok && v == src {
			out = append(out, el)
		}
	}
	return out
}
