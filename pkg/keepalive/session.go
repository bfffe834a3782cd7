// Package keepalive keeps a stream open to the development server for every
// lazily compiled module in use, forwards the server's update notifications
// and reconnects with a capped backoff when the stream fails.
package keepalive

import (
	"context"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/withgalaxy/lazyload/pkg/config"
)

const SessionHeader = "X-Lazyload-Session"

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateErroring
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateErroring:
		return "erroring"
	default:
		return "idle"
	}
}

type Module struct {
	Hot bool
}

type Options struct {
	// Data is the server-relative part of the endpoint identifying the
	// active module.
	Data     string
	OnError  func(error)
	OnUpdate func(Update)
	Active   bool
	Module   Module
}

type ClientOption func(*Client)

func WithTransport(name config.TransportName, t Transport) ClientOption {
	return func(c *Client) { c.transports[name] = t }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.transports[config.TransportEventSource] = &EventSource{Client: hc} }
}

func WithClock(cl clock.Clock) ClientOption {
	return func(c *Client) { c.clock = cl }
}

func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

func WithRand(rng *rand.Rand) ClientOption {
	return func(c *Client) { c.rng = rng }
}

// Client holds the configuration shared by every keep-alive session of one
// runtime instance.
type Client struct {
	cfg        config.KeepAliveConfig
	transports map[config.TransportName]Transport
	clock      clock.Clock
	log        zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewClient(cfg config.KeepAliveConfig, opts ...ClientOption) *Client {
	c := &Client{
		cfg: cfg,
		transports: map[config.TransportName]Transport{
			config.TransportEventSource: &EventSource{Client: &http.Client{}},
			config.TransportWebSocket:   &WebSocket{},
		},
		clock: clock.New(),
		log:   zerolog.Nop(),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// KeepAlive activates a session for opts.Data and returns its cleanup
// function. Configuration problems are returned before any connection is
// attempted. When opts.Active is false or hot reloading is off the returned
// cleanup does nothing.
func (c *Client) KeepAlive(opts Options) (func(), error) {
	s, err := c.Open(opts)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return func() {}, nil
	}
	return s.Close, nil
}

// Open is KeepAlive returning the session itself. It returns a nil session
// when activation is not requested.
func (c *Client) Open(opts Options) (*Session, error) {
	if strings.TrimSpace(opts.Data) == "" {
		return nil, wrapConfig("keep-alive data is required")
	}
	base, err := ParseResourceQuery(c.cfg.ResourceQuery)
	if err != nil {
		return nil, err
	}
	endpoint, transportName, err := resolveEndpoint(base, opts.Data, c.cfg.Transport)
	if err != nil {
		return nil, err
	}
	transport, ok := c.transports[transportName]
	if !ok {
		return nil, wrapConfig("no %s transport registered", transportName)
	}

	if !opts.Module.Hot {
		c.log.Warn().Str("data", opts.Data).Msg("Hot Module Replacement is not enabled. Waiting for process restart...")
		return nil, nil
	}
	if !opts.Active {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        uuid.NewString(),
		endpoint:  endpoint,
		client:    c,
		transport: transport,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateConnecting,
	}
	s.log = c.log.With().Str("session", s.id).Str("endpoint", endpoint).Logger()
	go s.run()
	return s, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return NextBackoffDelay(c.cfg.Backoff, attempt, c.rng)
}

// Session is one keep-alive channel. It holds at most one stream at a time
// and runs until Close.
type Session struct {
	id        string
	endpoint  string
	client    *Client
	transport Transport
	opts      Options
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	state      State
	closed     bool
	inCallback bool
	failures   int

	// cbMu is held while a callback is checked and invoked, so Close can
	// wait out a delivery that already passed the closed check.
	cbMu sync.Mutex
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Endpoint() string {
	return s.endpoint
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Failures counts OnError deliveries so far.
func (s *Session) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// Done is closed once the session has released its stream and stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close moves the session to Idle, releases the stream and cancels any
// pending reconnect. It may be called any number of times, including from
// inside OnError or OnUpdate. Called from another goroutine it waits for a
// callback that is being delivered; once it returns no callback runs again.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = StateIdle
	inCallback := s.inCallback
	s.mu.Unlock()

	s.cancel()
	if !inCallback {
		s.cbMu.Lock()
		s.cbMu.Unlock()
	}
	s.log.Debug().Msg("keep-alive closed")
}

func (s *Session) setState(st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.state != st {
		s.log.Debug().Str("from", s.state.String()).Str("to", st.String()).Msg("keep-alive state")
	}
	s.state = st
	return true
}

// deliver runs fn unless the session is closed. The closed check and the
// call happen under cbMu, which Close acquires unless it is called from fn.
func (s *Session) deliver(failure bool, fn func()) bool {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if failure {
		s.failures++
	}
	s.inCallback = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inCallback = false
		s.mu.Unlock()
	}()
	fn()
	return true
}

func (s *Session) run() {
	defer close(s.done)

	attempt := 1
	for {
		if !s.setState(StateConnecting) {
			return
		}
		header := http.Header{}
		header.Set(SessionHeader, s.id)
		stream, err := s.transport.Dial(s.ctx, s.endpoint, header)
		if err == nil {
			if s.setState(StateOpen) {
				attempt = 1
				err = s.consume(stream)
			}
			stream.Close()
		}
		if s.ctx.Err() != nil {
			return
		}

		if !s.setState(StateErroring) {
			return
		}
		s.fail(classify(s.endpoint, err))

		delay := s.client.backoff(attempt)
		attempt++
		s.log.Debug().Dur("delay", delay).Int("attempt", attempt).Msg("keep-alive reconnect scheduled")
		timer := s.client.clock.Timer(delay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Session) consume(stream Stream) error {
	stop := context.AfterFunc(s.ctx, func() { stream.Close() })
	defer stop()

	for {
		u, err := stream.Next()
		if err != nil {
			return err
		}
		if s.opts.OnUpdate == nil {
			s.log.Info().Str("type", u.Type).Strs("modules", u.Modules).Msg(u.Message)
			continue
		}
		if !s.deliver(false, func() { s.opts.OnUpdate(u) }) {
			return s.ctx.Err()
		}
	}
}

func (s *Session) fail(err *CommunicationError) {
	s.log.Warn().Err(err).Msg("keep-alive failure")
	s.deliver(true, func() {
		if s.opts.OnError != nil {
			s.opts.OnError(err)
		}
	})
}
