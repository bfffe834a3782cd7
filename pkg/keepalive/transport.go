package keepalive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/withgalaxy/lazyload/pkg/config"
)

// Update is a notification pushed by the development server.
type Update struct {
	Type    string   `json:"type"`
	Message string   `json:"message,omitempty"`
	Modules []string `json:"modules,omitempty"`
}

// Stream is one live connection to the keep-alive endpoint.
type Stream interface {
	// Next blocks until the next update arrives. Payload errors wrap
	// ErrProtocol; anything else is treated as a dropped connection.
	Next() (Update, error)
	Close() error
}

type Transport interface {
	Dial(ctx context.Context, endpoint string, header http.Header) (Stream, error)
}

func decodeUpdate(data []byte) (Update, error) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return Update{}, protocolError("decode update: %v", err)
	}
	if u.Type == "" {
		return Update{}, protocolError("update without type: %.64q", data)
	}
	return u, nil
}

// ParseResourceQuery decodes the base locator handed to the runtime, either
// plain or in the URI-encoded "?http%3A%2F%2F..." form.
func ParseResourceQuery(raw string) (string, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "?")
	if raw == "" {
		return "", wrapConfig("empty resource query")
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", wrapConfig("decode resource query: %v", err)
	}
	return decoded, nil
}

// resolveEndpoint joins base and data and picks the transport for the result.
func resolveEndpoint(base, data string, name config.TransportName) (string, config.TransportName, error) {
	endpoint := base + data
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", wrapConfig("parse endpoint %q: %v", endpoint, err)
	}

	switch u.Scheme {
	case "http", "https":
		if name == config.TransportWebSocket {
			u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
			return u.String(), config.TransportWebSocket, nil
		}
		return u.String(), config.TransportEventSource, nil
	case "ws", "wss":
		if name == config.TransportEventSource {
			return "", "", wrapConfig("endpoint %q requires the websocket transport", endpoint)
		}
		return u.String(), config.TransportWebSocket, nil
	default:
		return "", "", wrapConfig("endpoint %q must be absolute http(s) or ws(s)", endpoint)
	}
}
