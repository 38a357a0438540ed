package channels

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/dotsetgreg/banter/pkg/bus"
)

// Channel is a chat transport. It publishes inbound lines and connection
// events to the bus and delivers outbound replies.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
}

type BaseChannel struct {
	bus     *bus.MessageBus
	running atomic.Bool
	name    string
}

func NewBaseChannel(name string, messageBus *bus.MessageBus) *BaseChannel {
	return &BaseChannel{
		bus:  messageBus,
		name: name,
	}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

// HandleMessage publishes a chat line. Blank lines are ignored.
func (c *BaseChannel) HandleMessage(sender, chatID, content string) {
	content = strings.TrimSpace(content)
	if content == "" || sender == "" {
		return
	}

	c.bus.PublishInbound(bus.InboundMessage{
		Kind:    bus.KindMessage,
		Channel: c.name,
		Sender:  sender,
		ChatID:  chatID,
		Content: content,
	})
}

func (c *BaseChannel) HandleConnect(chatID string) {
	c.bus.PublishInbound(bus.InboundMessage{
		Kind:    bus.KindConnect,
		Channel: c.name,
		ChatID:  chatID,
	})
}

func (c *BaseChannel) HandleDisconnect(chatID, reason string, fatal bool) {
	c.bus.PublishInbound(bus.InboundMessage{
		Kind:    bus.KindDisconnect,
		Channel: c.name,
		ChatID:  chatID,
		Reason:  reason,
		Fatal:   fatal,
	})
}

func (c *BaseChannel) setRunning(running bool) {
	c.running.Store(running)
}
