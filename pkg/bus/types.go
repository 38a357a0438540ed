package bus

import "time"

// Kind tells the engine what an inbound event is.
type Kind string

const (
	KindMessage    Kind = "message"
	KindConnect    Kind = "connect"
	KindDisconnect Kind = "disconnect"
)

// InboundMessage is a line or a connection event from a transport.
type InboundMessage struct {
	Kind    Kind
	Channel string
	Sender  string
	ChatID  string
	Content string
	// Fatal marks a disconnect the transport will not recover from.
	Fatal     bool
	Reason    string
	Timestamp time.Time
}

// OutboundMessage is a reply for the transport named by Channel.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}

// IsControl reports whether m is a connection event rather than chat.
func (m InboundMessage) IsControl() bool {
	return m.Kind == KindConnect || m.Kind == KindDisconnect
}
