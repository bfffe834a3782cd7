package keepalive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"

	sse "github.com/tmaxmax/go-sse"
)

// EventSource speaks the text/event-stream protocol over a plain GET, the
// same wire format a browser EventSource consumes. Servers answering with a
// single application/json document are accepted as well.
type EventSource struct {
	Client *http.Client
}

func (t *EventSource) Dial(ctx context.Context, endpoint string, header http.Header) (Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if header != nil {
		req.Header = header.Clone()
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch mediaType {
	case "text/event-stream":
		return newEventStream(resp.Body), nil
	case "application/json":
		return &jsonStream{body: resp.Body, dec: json.NewDecoder(resp.Body)}, nil
	default:
		resp.Body.Close()
		return nil, protocolError("unsupported content type %q", mediaType)
	}
}

type event struct {
	ev  sse.Event
	err error
}

// eventStream pulls events off the body with sse.Read on its own goroutine
// so that Close can interrupt a blocked Next.
type eventStream struct {
	body      io.ReadCloser
	events    chan event
	closed    chan struct{}
	closeOnce sync.Once
}

func newEventStream(body io.ReadCloser) *eventStream {
	s := &eventStream{
		body:   body,
		events: make(chan event),
		closed: make(chan struct{}),
	}
	go s.read()
	return s
}

func (s *eventStream) read() {
	defer close(s.events)
	for ev, err := range sse.Read(s.body, nil) {
		select {
		case s.events <- event{ev: ev, err: err}:
		case <-s.closed:
			return
		}
		if err != nil {
			return
		}
	}
}

// Next returns the next event carrying data. Comments and events without
// data are skipped.
func (s *eventStream) Next() (Update, error) {
	for {
		e, ok := <-s.events
		if !ok {
			return Update{}, fmt.Errorf("event stream closed: %w", io.ErrUnexpectedEOF)
		}
		if e.err != nil {
			return Update{}, e.err
		}
		if e.ev.Data == "" {
			continue
		}
		return decodeUpdate([]byte(e.ev.Data))
	}
}

func (s *eventStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.body.Close()
	})
	return err
}

type jsonStream struct {
	body io.ReadCloser
	dec  *json.Decoder
}

func (s *jsonStream) Next() (Update, error) {
	var raw json.RawMessage
	if err := s.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return Update{}, fmt.Errorf("response body closed: %w", io.ErrUnexpectedEOF)
		}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Update{}, protocolError("decode update: %v", err)
		}
		return Update{}, err
	}
	return decodeUpdate(raw)
}

func (s *jsonStream) Close() error {
	return s.body.Close()
}
