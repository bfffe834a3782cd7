package hmr

type MessageType string

const (
	MsgTypeUpdate MessageType = "update"
	MsgTypeReload MessageType = "reload"
)

// Message is pushed to keep-alive clients; it decodes as keepalive.Update.
type Message struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message,omitempty"`
	Modules []string    `json:"modules,omitempty"`
}

// targets reports whether a client holding keys should receive m. Messages
// without modules go to everyone.
func (m Message) targets(keys []string) bool {
	if len(m.Modules) == 0 {
		return true
	}
	for _, mod := range m.Modules {
		for _, k := range keys {
			if mod == k {
				return true
			}
		}
	}
	return false
}
