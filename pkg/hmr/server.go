// Package hmr is the development-server side of the keep-alive channel.
// Clients connect to <prefix><key>[@<key>...] with an event-stream request or
// a websocket upgrade; the keys stay active for as long as the connection
// lives and the server pushes update messages for them.
package hmr

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	sse "github.com/tmaxmax/go-sse"
)

const DefaultPrefix = "/lazy-compilation-using-"

type client struct {
	id   string
	keys []string
	send chan Message
}

type Server struct {
	prefix       string
	clients      map[*client]bool
	broadcast    chan Message
	mu           sync.RWMutex
	upgrader     websocket.Upgrader
	origins      *OriginPolicy
	log          zerolog.Logger
	pingInterval time.Duration
	done         chan struct{}
	closeOnce    sync.Once

	Active *ActiveModules
}

type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithAllowedOrigins lets pages served from origins connect in addition to
// loopback ones.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = NewOriginPolicy(origins) }
}

// WithPingInterval sets how often idle event streams receive a comment line.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) { s.pingInterval = d }
}

func NewServer(prefix string, opts ...Option) *Server {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	s := &Server{
		prefix:       prefix,
		clients:      make(map[*client]bool),
		broadcast:    make(chan Message, 256),
		origins:      NewOriginPolicy(nil),
		log:          zerolog.Nop(),
		pingInterval: 15 * time.Second,
		done:         make(chan struct{}),
		Active:       NewActiveModules(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.origins.Allow}
	return s
}

func (s *Server) Start() {
	go s.handleBroadcasts()
}

// Close stops broadcasting and ends every open stream.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Server) Prefix() string {
	return s.prefix
}

func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, s.prefix) {
		http.NotFound(w, r)
		return
	}
	keys := parseKeys(strings.TrimPrefix(r.URL.Path, s.prefix))
	if len(keys) == 0 {
		http.Error(w, "no active modules in request", http.StatusBadRequest)
		return
	}

	if !s.origins.Allow(r) {
		s.log.Warn().Str("origin", requestOrigin(r)).Msg("keep-alive origin rejected")
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	switch {
	case websocket.IsWebSocketUpgrade(r):
		s.handleWebSocket(w, r, keys)
	case strings.Contains(r.Header.Get("Accept"), "text/event-stream"):
		s.handleEventStream(w, r, keys)
	default:
		http.Error(w, "keep-alive requires text/event-stream or websocket", http.StatusNotAcceptable)
	}
}

func parseKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, "@") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s *Server) register(r *http.Request, keys []string) *client {
	id := r.Header.Get("X-Lazyload-Session")
	if id == "" {
		id = uuid.NewString()
	}
	c := &client{id: id, keys: keys, send: make(chan Message, 16)}

	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
	s.Active.Acquire(keys)

	s.log.Info().Str("client", c.id).Strs("modules", keys).Msg("keep-alive connected")
	return c
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	s.Active.Release(c.keys)

	s.log.Info().Str("client", c.id).Strs("modules", c.keys).Msg("keep-alive disconnected")
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request, keys []string) {
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if origin := r.Header.Get("Origin"); origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	c := s.register(r, keys)
	defer s.unregister(c)

	if err := sess.Flush(); err != nil {
		return
	}

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case <-ping.C:
			comment := &sse.Message{}
			comment.AppendComment("ping")
			if err := s.send(sess, comment); err != nil {
				return
			}
		case msg := <-c.send:
			data, err := json.Marshal(msg)
			if err != nil {
				s.log.Error().Err(err).Msg("encode keep-alive message")
				continue
			}
			ev := &sse.Message{}
			ev.AppendData(string(data))
			if err := s.send(sess, ev); err != nil {
				return
			}
		}
	}
}

func (s *Server) send(sess *sse.Session, m *sse.Message) error {
	if err := sess.Send(m); err != nil {
		return err
	}
	return sess.Flush()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, keys []string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := s.register(r, keys)
	defer func() {
		s.unregister(c)
		conn.Close()
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-s.done:
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case msg := <-c.send:
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleBroadcasts() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.broadcast:
			s.mu.RLock()
			for c := range s.clients {
				if !msg.targets(c.keys) {
					continue
				}
				select {
				case c.send <- msg:
				default:
					s.log.Warn().Str("client", c.id).Msg("keep-alive client too slow, dropping message")
				}
			}
			s.mu.RUnlock()
		}
	}
}

// BroadcastUpdate tells clients holding any of modules that they were
// recompiled.
func (s *Server) BroadcastUpdate(message string, modules ...string) {
	s.log.Info().Strs("modules", modules).Msg("broadcasting update")
	s.publish(Message{
		Type:    MsgTypeUpdate,
		Message: message,
		Modules: modules,
	})
}

func (s *Server) BroadcastReload() {
	s.publish(Message{Type: MsgTypeReload})
}

// publish queues msg for the broadcast loop. Messages sent after Close are
// dropped.
func (s *Server) publish(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.done:
	}
}
