package hmr

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	sse "github.com/tmaxmax/go-sse"
)

func TestNewServer(t *testing.T) {
	srv := NewServer("")
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
	if srv.clients == nil {
		t.Error("clients map not initialized")
	}
	if srv.broadcast == nil {
		t.Error("broadcast channel not initialized")
	}
	if srv.Prefix() != DefaultPrefix {
		t.Errorf("expected default prefix, got %q", srv.Prefix())
	}
}

func dialWS(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + path
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	return ws
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestServerWebSocketRegistersActiveModules(t *testing.T) {
	srv := NewServer("/lazy-")
	srv.Start()
	defer srv.Close()

	server := httptest.NewServer(srv)
	defer server.Close()

	ws := dialWS(t, server, "/lazy-./a.js@./b.js")

	waitFor(t, func() bool { return srv.ClientCount() == 1 })
	if !srv.Active.IsActive("./a.js") || !srv.Active.IsActive("./b.js") {
		t.Errorf("expected both modules active, got %v", srv.Active.Keys())
	}

	ws.Close()
	waitFor(t, func() bool { return srv.ClientCount() == 0 })
	if len(srv.Active.Keys()) != 0 {
		t.Errorf("expected no active modules after disconnect, got %v", srv.Active.Keys())
	}
}

func TestServerBroadcastUpdateTargetsHolders(t *testing.T) {
	srv := NewServer("/lazy-")
	srv.Start()
	defer srv.Close()

	server := httptest.NewServer(srv)
	defer server.Close()

	holder := dialWS(t, server, "/lazy-./cart.js")
	defer holder.Close()
	other := dialWS(t, server, "/lazy-./home.js")
	defer other.Close()
	waitFor(t, func() bool { return srv.ClientCount() == 2 })

	srv.BroadcastUpdate("recompiled ./cart.js", "./cart.js")

	var msg Message
	holder.SetReadDeadline(time.Now().Add(time.Second))
	if err := holder.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if msg.Type != MsgTypeUpdate {
		t.Errorf("expected MsgTypeUpdate, got %v", msg.Type)
	}
	if len(msg.Modules) != 1 || msg.Modules[0] != "./cart.js" {
		t.Errorf("unexpected modules %v", msg.Modules)
	}

	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if err := other.ReadJSON(&msg); err == nil {
		t.Errorf("client without the module received %+v", msg)
	}
}

func TestServerBroadcastReloadReachesEveryone(t *testing.T) {
	srv := NewServer("/lazy-")
	srv.Start()
	defer srv.Close()

	server := httptest.NewServer(srv)
	defer server.Close()

	clients := []*websocket.Conn{
		dialWS(t, server, "/lazy-./a.js"),
		dialWS(t, server, "/lazy-./b.js"),
	}
	waitFor(t, func() bool { return srv.ClientCount() == 2 })

	srv.BroadcastReload()

	for i, ws := range clients {
		var msg Message
		ws.SetReadDeadline(time.Now().Add(time.Second))
		if err := ws.ReadJSON(&msg); err != nil {
			t.Fatalf("client %d: ReadJSON failed: %v", i, err)
		}
		if msg.Type != MsgTypeReload {
			t.Errorf("client %d: expected reload, got %v", i, msg.Type)
		}
		ws.Close()
	}
}

func TestServerEventStream(t *testing.T) {
	srv := NewServer("/lazy-", WithPingInterval(time.Hour))
	srv.Start()
	defer srv.Close()

	server := httptest.NewServer(srv)
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/lazy-./page.js", nil)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	waitFor(t, func() bool { return srv.Active.IsActive("./page.js") })

	srv.BroadcastUpdate("recompiled", "./page.js")

	for ev, err := range sse.Read(resp.Body, nil) {
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		var msg Message
		if err := json.Unmarshal([]byte(ev.Data), &msg); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if msg.Message != "recompiled" {
			t.Errorf("unexpected message %q", msg.Message)
		}
		return
	}
	t.Fatal("event stream ended without a message")
}

func TestServerBroadcastAfterCloseDoesNotBlock(t *testing.T) {
	srv := NewServer("/lazy-")
	srv.Start()
	srv.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < cap(srv.broadcast)+10; i++ {
			srv.BroadcastUpdate("recompiled", "./a.js")
		}
		srv.BroadcastReload()
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked after Close")
	}
}

func TestServerRejectsBadRequests(t *testing.T) {
	srv := NewServer("/lazy-")
	server := httptest.NewServer(srv)
	defer server.Close()

	tests := []struct {
		path   string
		accept string
		status int
	}{
		{"/elsewhere", "text/event-stream", http.StatusNotFound},
		{"/lazy-", "text/event-stream", http.StatusBadRequest},
		{"/lazy-@", "text/event-stream", http.StatusBadRequest},
		{"/lazy-./a.js", "application/json", http.StatusNotAcceptable},
	}

	for _, tt := range tests {
		req, _ := http.NewRequest(http.MethodGet, server.URL+tt.path, nil)
		req.Header.Set("Accept", tt.accept)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s: request failed: %v", tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.status {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.status, resp.StatusCode)
		}
	}
}

func TestMessageTargets(t *testing.T) {
	msg := Message{Type: MsgTypeUpdate, Modules: []string{"./a.js"}}
	if !msg.targets([]string{"./b.js", "./a.js"}) {
		t.Error("expected holder of ./a.js to be targeted")
	}
	if msg.targets([]string{"./b.js"}) {
		t.Error("expected holder of ./b.js to be skipped")
	}
	if !(Message{Type: MsgTypeReload}).targets([]string{"./b.js"}) {
		t.Error("messages without modules target everyone")
	}
}

func TestParseKeys(t *testing.T) {
	keys := parseKeys("./a.js@ @./b.js@")
	if len(keys) != 2 || keys[0] != "./a.js" || keys[1] != "./b.js" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestServerRejectsForeignOrigin(t *testing.T) {
	srv := NewServer("/lazy-", WithAllowedOrigins([]string{"https://app.example.com"}))
	server := httptest.NewServer(srv)
	defer server.Close()

	for origin, status := range map[string]int{
		"https://evil.example.net": http.StatusForbidden,
		"https://app.example.com":  http.StatusNotAcceptable,
	} {
		req, _ := http.NewRequest(http.MethodGet, server.URL+"/lazy-./a.js", nil)
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != status {
			t.Errorf("%s: expected %d, got %d", origin, status, resp.StatusCode)
		}
	}

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/lazy-./a.js"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example.net"}})
	if err == nil {
		t.Fatal("expected foreign websocket origin to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for foreign websocket origin")
	}
}
