package channels

import (
	"errors"
	"strings"
)

var (
	// ErrConnectionLimit means the server refused us for having too many
	// connections. It is fatal: the transport does not reconnect.
	ErrConnectionLimit = errors.New("server connection limit reached")
	ErrNotRunning      = errors.New("channel not running")
	ErrNoTarget        = errors.New("no chat target")
)

var connectionLimitMarkers = []string{
	"connection limit",
	"too many connections",
	"too many host connections",
	"too many user connections",
	"too many connections from your",
	"max connections",
	"maximum connections",
}

// IsConnectionLimit reports whether a server error text is a
// connection-limit refusal.
func IsConnectionLimit(reason string) bool {
	lower := strings.ToLower(reason)
	for _, m := range connectionLimitMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
