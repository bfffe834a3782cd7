package keepalive

import (
	"errors"
	"fmt"
)

var (
	ErrUnreachable   = errors.New("keepalive: server unreachable")
	ErrProtocol      = errors.New("keepalive: malformed payload")
	ErrConfiguration = errors.New("keepalive: invalid configuration")
)

// CommunicationError is what OnError receives. Kind is ErrUnreachable or
// ErrProtocol; both match with errors.Is.
type CommunicationError struct {
	Endpoint string
	Kind     error
	Err      error
}

func (e *CommunicationError) Error() string {
	if errors.Is(e.Kind, ErrProtocol) {
		return fmt.Sprintf("Malformed update received from the server (%s): %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("Problem communicating active modules to the server (%s): %v", e.Endpoint, e.Err)
}

func (e *CommunicationError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func classify(endpoint string, err error) *CommunicationError {
	kind := ErrUnreachable
	if errors.Is(err, ErrProtocol) {
		kind = ErrProtocol
	}
	return &CommunicationError{Endpoint: endpoint, Kind: kind, Err: err}
}

func protocolError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

func wrapConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
