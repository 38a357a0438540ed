package engine

import "errors"

var (
	// ErrSuperseded means a newer inbound line arrived during the post-delay.
	ErrSuperseded = errors.New("reply superseded by newer message")
	// ErrTransportClosed means the transport reported a fatal disconnect;
	// nothing more will be sent.
	ErrTransportClosed = errors.New("transport closed")
	// ErrNoTarget means no connect or message event has named a chat yet.
	ErrNoTarget = errors.New("no chat target known")
)
