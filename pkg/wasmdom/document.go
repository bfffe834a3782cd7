//go:build js && wasm
// +build js,wasm

package wasmdom

import (
	"sync"
	"syscall/js"

	"github.com/withgalaxy/lazyload/pkg/dom"
)

type Element struct {
	v js.Value
}

func (e *Element) Value() js.Value {
	return e.v
}

func (e *Element) Attr(name string) (string, bool) {
	if !e.v.Call("hasAttribute", name).Bool() {
		return "", false
	}
	return e.v.Call("getAttribute", name).String(), true
}

func (e *Element) SetAttr(name, value string) {
	e.v.Call("setAttribute", name, value)
}

// On attaches a DOM listener. The returned function removes it and releases
// the Go callback.
func (e *Element) On(t dom.EventType, fn func(dom.Event)) func() {
	cb := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		ev := dom.Event{Type: t, Target: e}
		if len(args) > 0 {
			if msg := args[0].Get("message"); msg.Type() == js.TypeString {
				ev.Message = msg.String()
			}
		}
		fn(ev)
		return nil
	})
	e.v.Call("addEventListener", string(t), cb)

	var once sync.Once
	return func() {
		once.Do(func() {
			e.v.Call("removeEventListener", string(t), cb)
			cb.Release()
		})
	}
}

type Document struct {
	doc  js.Value
	head js.Value
}

func New() *Document {
	doc := js.Global().Get("document")
	return &Document{doc: doc, head: doc.Get("head")}
}

func (d *Document) Scripts() []dom.Element {
	list := d.doc.Call("getElementsByTagName", "script")
	n := list.Length()
	out := make([]dom.Element, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &Element{v: list.Index(i)})
	}
	return out
}

func (d *Document) CreateScript() dom.Element {
	return &Element{v: d.doc.Call("createElement", "script")}
}

func (d *Document) Append(el dom.Element) {
	d.head.Call("appendChild", el.(*Element).v)
}

func (d *Document) Remove(el dom.Element) {
	v := el.(*Element).v
	if parent := v.Get("parentNode"); parent.Truthy() {
		parent.Call("removeChild", v)
	}
}

func (d *Document) URL() string {
	return js.Global().Get("location").Get("href").String()
}

// Nonce reads the nonce of the first script carrying one.
func (d *Document) Nonce() string {
	el := d.doc.Call("querySelector", "script[nonce]")
	if !el.Truthy() {
		return ""
	}
	return el.Get("nonce").String()
}

// TrustedScriptURL returns the trusted-types policy named name as a
// createScriptURL function, or nil when the browser has no trusted types.
func TrustedScriptURL(name string) func(string) string {
	tt := js.Global().Get("trustedTypes")
	if !tt.Truthy() {
		return nil
	}
	create := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		return args[0]
	})
	opts := js.Global().Get("Object").New()
	opts.Set("createScriptURL", create)
	policy := tt.Call("createPolicy", name, opts)
	return func(u string) string {
		return policy.Call("createScriptURL", u).Call("toString").String()
	}
}
