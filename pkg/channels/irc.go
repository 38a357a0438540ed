package channels

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"

	"github.com/dotsetgreg/banter/pkg/bus"
	"github.com/dotsetgreg/banter/pkg/config"
	"github.com/dotsetgreg/banter/pkg/logger"
)

// IRCChannel joins one IRC channel as the bot's nick. The library reconnects
// after transient drops; a connection-limit ERROR stops it for good.
type IRCChannel struct {
	*BaseChannel
	conn    *ircevent.Connection
	channel string
	nick    string

	privmsg func(target, text string) error
	quit    func()

	started  atomic.Bool
	fatal    atomic.Bool
	logPipe  io.Closer
	loopDone chan struct{}
	stopOnce sync.Once
}

func NewIRCChannel(cfg config.IRCConfig, nick string, messageBus *bus.MessageBus) (*IRCChannel, error) {
	if strings.TrimSpace(cfg.Server) == "" {
		return nil, fmt.Errorf("irc.server is required")
	}
	channel := strings.TrimSpace(cfg.Channel.String())
	if channel == "" {
		return nil, fmt.Errorf("irc.channel is required")
	}
	if strings.TrimSpace(nick) == "" {
		return nil, fmt.Errorf("irc nick is required")
	}

	pipe := logger.Writer("irc")
	conn := &ircevent.Connection{
		Server:        net.JoinHostPort(cfg.Server, strconv.Itoa(cfg.Port)),
		Nick:          nick,
		User:          strings.ToLower(nick),
		RealName:      nick,
		Password:      cfg.Password,
		UseTLS:        cfg.TLS,
		ReconnectFreq: cfg.ReconnectDelay(),
		QuitMessage:   "bye",
		Log:           log.New(pipe, "", 0),
	}

	c := &IRCChannel{
		BaseChannel: NewBaseChannel(config.TransportIRC, messageBus),
		conn:        conn,
		channel:     channel,
		nick:        nick,
		privmsg:     conn.Privmsg,
		quit:        conn.Quit,
		logPipe:     pipe,
		loopDone:    make(chan struct{}),
	}

	conn.AddConnectCallback(func(e ircmsg.Message) { c.onWelcome() })
	conn.AddCallback("PRIVMSG", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		c.onPrivmsg(e.Nick(), e.Params[0], e.Params[1])
	})
	conn.AddCallback("ERROR", func(e ircmsg.Message) {
		c.onServerError(strings.Join(e.Params, " "))
	})
	conn.AddDisconnectCallback(func(e ircmsg.Message) { c.onDisconnect() })

	return c, nil
}

func (c *IRCChannel) Start(ctx context.Context) error {
	logger.InfoCF("irc", "Connecting", map[string]any{
		"server":  c.conn.Server,
		"nick":    c.nick,
		"channel": c.channel,
	})

	if err := c.conn.Connect(); err != nil {
		return fmt.Errorf("failed to connect to irc server: %w", err)
	}
	c.started.Store(true)
	c.setRunning(true)

	go func() {
		defer close(c.loopDone)
		c.conn.Loop()
		c.setRunning(false)
	}()
	return nil
}

func (c *IRCChannel) Stop(ctx context.Context) error {
	logger.InfoC("irc", "Stopping IRC connection")
	defer c.logPipe.Close()
	if !c.started.Load() {
		return nil
	}
	c.shutdown()

	select {
	case <-c.loopDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (c *IRCChannel) shutdown() {
	c.stopOnce.Do(func() {
		c.setRunning(false)
		if c.started.Load() {
			c.quit()
		}
	})
}

func (c *IRCChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() || c.fatal.Load() {
		return ErrNotRunning
	}

	target := msg.ChatID
	if target == "" {
		target = c.channel
	}

	// IRC lines end at CR/LF; anything after would be parsed as a new command.
	text := strings.NewReplacer("\r", " ", "\n", " ").Replace(msg.Content)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if err := c.privmsg(target, text); err != nil {
		return fmt.Errorf("failed to send irc message: %w", err)
	}
	return nil
}

func (c *IRCChannel) onWelcome() {
	if err := c.conn.Join(c.channel); err != nil {
		logger.ErrorCF("irc", "Failed to join channel", map[string]any{
			"channel": c.channel,
			"error":   err.Error(),
		})
		return
	}
	logger.InfoCF("irc", "Joined channel", map[string]any{"channel": c.channel})
	c.HandleConnect(c.channel)
}

func (c *IRCChannel) onPrivmsg(sender, target, text string) {
	if !strings.EqualFold(target, c.channel) {
		return
	}
	c.HandleMessage(sender, c.channel, text)
}

func (c *IRCChannel) onServerError(reason string) {
	if !IsConnectionLimit(reason) {
		logger.WarnCF("irc", "Server error", map[string]any{"reason": reason})
		return
	}
	if !c.fatal.CompareAndSwap(false, true) {
		return
	}

	err := fmt.Errorf("%w: %s", ErrConnectionLimit, reason)
	logger.ErrorCF("irc", "Connection limit reached, giving up", map[string]any{"error": err.Error()})
	c.HandleDisconnect(c.channel, err.Error(), true)
	c.shutdown()
}

func (c *IRCChannel) onDisconnect() {
	if c.fatal.Load() {
		return
	}
	logger.WarnCF("irc", "Disconnected", map[string]any{"channel": c.channel})
	c.HandleDisconnect(c.channel, "disconnected", false)
}
