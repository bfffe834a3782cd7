package keepalive

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// WebSocket receives updates as JSON text messages.
type WebSocket struct {
	Dialer *websocket.Dialer
}

func (t *WebSocket) Dial(ctx context.Context, endpoint string, header http.Header) (Stream, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake: %s: %w", resp.Status, err)
		}
		return nil, err
	}
	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Next() (Update, error) {
	kind, data, err := s.conn.ReadMessage()
	if err != nil {
		return Update{}, err
	}
	if kind != websocket.TextMessage {
		return Update{}, protocolError("unexpected websocket message type %d", kind)
	}
	return decodeUpdate(data)
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}
