package channels

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/dotsetgreg/banter/pkg/bus"
	"github.com/dotsetgreg/banter/pkg/config"
	"github.com/dotsetgreg/banter/pkg/logger"
)

const sendTimeout = 10 * time.Second

// DiscordChannel follows one text channel of a guild. discordgo handles
// gateway reconnects; we only forward the connect/disconnect events.
type DiscordChannel struct {
	*BaseChannel
	session   *discordgo.Session
	channelID string

	send func(channelID, content string) error
}

func NewDiscordChannel(cfg config.DiscordConfig, messageBus *bus.MessageBus) (*DiscordChannel, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("discord.token is required")
	}
	if strings.TrimSpace(cfg.ChannelID) == "" {
		return nil, fmt.Errorf("discord.channel_id is required")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	c := &DiscordChannel{
		BaseChannel: NewBaseChannel(config.TransportDiscord, messageBus),
		session:     session,
		channelID:   cfg.ChannelID,
	}
	c.send = func(channelID, content string) error {
		_, err := c.session.ChannelMessageSend(channelID, content)
		return err
	}
	return c, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bot")

	c.session.AddHandler(c.handleMessage)
	c.session.AddHandler(c.handleConnect)
	c.session.AddHandler(c.handleDisconnect)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	c.setRunning(true)

	botUser, err := c.session.User("@me")
	if err != nil {
		return fmt.Errorf("failed to get bot user: %w", err)
	}
	logger.InfoCF("discord", "Discord bot connected", map[string]any{
		"username":   botUser.Username,
		"user_id":    botUser.ID,
		"channel_id": c.channelID,
	})

	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord bot")
	c.setRunning(false)

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}

	return nil
}

func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return ErrNotRunning
	}

	channelID := msg.ChatID
	if channelID == "" {
		channelID = c.channelID
	}
	if strings.TrimSpace(msg.Content) == "" {
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.send(channelID, msg.Content)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send discord message: %w", err)
		}
		return nil
	case <-sendCtx.Done():
		return fmt.Errorf("send message timeout: %w", sendCtx.Err())
	}
}

func (c *DiscordChannel) handleConnect(s *discordgo.Session, _ *discordgo.Connect) {
	c.HandleConnect(c.channelID)
}

func (c *DiscordChannel) handleDisconnect(s *discordgo.Session, _ *discordgo.Disconnect) {
	logger.WarnC("discord", "Gateway disconnected")
	c.HandleDisconnect(c.channelID, "gateway disconnected", false)
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}

	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	if m.ChannelID != c.channelID {
		return
	}

	sender := m.Author.Username
	if m.Member != nil && m.Member.Nick != "" {
		sender = m.Member.Nick
	}

	logger.DebugCF("discord", "Received message", map[string]any{
		"sender":  sender,
		"user_id": m.Author.ID,
	})

	c.HandleMessage(sender, m.ChannelID, m.Content)
}
