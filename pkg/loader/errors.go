package loader

import (
	"errors"
	"fmt"

	"github.com/withgalaxy/lazyload/pkg/dom"
)

var (
	ErrScriptLoad          = errors.New("loader: script failed to load")
	ErrScriptTimeout       = errors.New("loader: script load timed out")
	ErrExternalUnsupported = errors.New("loader: external dependency support is disabled")
)

// LoadError carries the failed outcome of a single script load.
type LoadError struct {
	URL   string
	Event dom.Event
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("loading script %s failed (%s)", e.URL, e.Event.Type)
	if e.Event.Message != "" {
		msg += ": " + e.Event.Message
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	if e.Event.Type == dom.EventTimeout {
		return ErrScriptTimeout
	}
	return ErrScriptLoad
}

// OutcomeError converts a load outcome into an error, nil on success.
func OutcomeError(url string, ev dom.Event) error {
	if !ev.Failed() {
		return nil
	}
	return &LoadError{URL: url, Event: ev}
}
