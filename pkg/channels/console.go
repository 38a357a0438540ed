package channels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/dotsetgreg/banter/pkg/bus"
	"github.com/dotsetgreg/banter/pkg/config"
	"github.com/dotsetgreg/banter/pkg/logger"
)

// ConsoleChatID is the chat id used for the local console.
const ConsoleChatID = "console"

// lineReader is the slice of *readline.Instance the console uses.
type lineReader interface {
	Readline() (string, error)
	Stdout() io.Writer
	Stderr() io.Writer
	Close() error
}

// ConsoleChannel lets a local operator chat with one bot from a terminal.
type ConsoleChannel struct {
	*BaseChannel
	nick    string
	botName string
	open    func(prompt string) (lineReader, error)
	rl      lineReader
	done    chan struct{}
}

func NewConsoleChannel(cfg config.ConsoleConfig, botName string, messageBus *bus.MessageBus) *ConsoleChannel {
	nick := strings.TrimSpace(cfg.Nick)
	if nick == "" {
		nick = "you"
	}
	return &ConsoleChannel{
		BaseChannel: NewBaseChannel(config.TransportConsole, messageBus),
		nick:        nick,
		botName:     botName,
		open: func(prompt string) (lineReader, error) {
			return readline.NewEx(&readline.Config{
				Prompt:          prompt,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
		},
		done: make(chan struct{}),
	}
}

func (c *ConsoleChannel) Start(ctx context.Context) error {
	rl, err := c.open(fmt.Sprintf("%s> ", c.nick))
	if err != nil {
		return fmt.Errorf("failed to open console: %w", err)
	}
	c.rl = rl
	logger.SetOutput(rl.Stderr())
	c.setRunning(true)

	fmt.Fprintf(rl.Stdout(), "Chatting with %s as %s. Ctrl-D to quit.\n", c.botName, c.nick)
	c.HandleConnect(ConsoleChatID)

	go c.readLoop()
	return nil
}

func (c *ConsoleChannel) readLoop() {
	defer close(c.done)
	for {
		line, err := c.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				break
			}
			continue
		}
		if err != nil {
			break
		}
		c.HandleMessage(c.nick, ConsoleChatID, line)
	}

	c.setRunning(false)
	c.HandleDisconnect(ConsoleChatID, "console closed", true)
}

func (c *ConsoleChannel) Stop(ctx context.Context) error {
	if c.rl == nil {
		return nil
	}
	c.setRunning(false)
	err := c.rl.Close()
	logger.SetOutput(nil)

	select {
	case <-c.done:
	case <-ctx.Done():
	}
	return err
}

// Done is closed once the operator ends the session.
func (c *ConsoleChannel) Done() <-chan struct{} {
	return c.done
}

func (c *ConsoleChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return ErrNotRunning
	}
	_, err := fmt.Fprintln(c.rl.Stdout(), msg.Content)
	return err
}
