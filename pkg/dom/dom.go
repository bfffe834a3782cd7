// Package dom is the slice of the browser document the load-script runtime
// needs: creating, attaching and detaching script elements and listening for
// their load and error events. Implementations live in wasmdom (browser) and
// domtest (in memory).
package dom

type EventType string

const (
	EventLoad    EventType = "load"
	EventError   EventType = "error"
	EventTimeout EventType = "timeout"
)

// Event is the outcome delivered to load waiters. Success, failure and
// timeout share this shape and differ only by Type.
type Event struct {
	Type    EventType
	Target  Element
	Message string
}

func (e Event) Failed() bool {
	return e.Type != EventLoad
}

type Element interface {
	Attr(name string) (string, bool)
	SetAttr(name, value string)
	// On registers fn for events of type t and returns a function removing it.
	On(t EventType, fn func(Event)) (off func())
}

type Document interface {
	// Scripts returns the script elements currently attached to the document.
	Scripts() []Element
	// CreateScript returns a new, detached script element.
	CreateScript() Element
	// Append attaches el to the document head.
	Append(el Element)
	// Remove detaches el; removing a detached element is a no-op.
	Remove(el Element)
	// URL is the address of the current page.
	URL() string
	// Nonce is the script nonce of the execution context, or "".
	Nonce() string
}
