package channels

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/banter/pkg/bus"
	"github.com/dotsetgreg/banter/pkg/config"
)

func nextInbound(t *testing.T, mb *bus.MessageBus) bus.InboundMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, ok := mb.ConsumeInbound(ctx)
	require.True(t, ok, "expected an inbound message")
	return msg
}

func assertNoInbound(t *testing.T, mb *bus.MessageBus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	msg, ok := mb.ConsumeInbound(ctx)
	assert.False(t, ok, "unexpected inbound message %+v", msg)
}

func TestIsConnectionLimit(t *testing.T) {
	assert.True(t, IsConnectionLimit("Closing Link: 1.2.3.4 (Too many host connections (global))"))
	assert.True(t, IsConnectionLimit("Connection limit exceeded"))
	assert.False(t, IsConnectionLimit("Closing Link: 1.2.3.4 (Ping timeout: 240 seconds)"))
}

func TestBaseChannel_HandleMessage(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	c := NewBaseChannel("irc", mb)

	c.HandleMessage("Sam", "#lounge", "   ")
	assertNoInbound(t, mb)

	c.HandleMessage("Sam", "#lounge", "  hello  ")
	msg := nextInbound(t, mb)
	assert.Equal(t, bus.KindMessage, msg.Kind)
	assert.Equal(t, "irc", msg.Channel)
	assert.Equal(t, "Sam", msg.Sender)
	assert.Equal(t, "hello", msg.Content)
}

type fakeChannel struct {
	name    string
	mu      sync.Mutex
	sent    []bus.OutboundMessage
	running bool
	failing bool
}

func (f *fakeChannel) Name() string { return f.name }
func (f *fakeChannel) Start(ctx context.Context) error {
	if f.failing {
		return errors.New("nope")
	}
	f.mu.Lock()
	f.running = true
	f.mu.Unlock()
	return nil
}
func (f *fakeChannel) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	return nil
}
func (f *fakeChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}
func (f *fakeChannel) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}
func (f *fakeChannel) Sent() []bus.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bus.OutboundMessage(nil), f.sent...)
}

func TestManager_DispatchesOutbound(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	fake := &fakeChannel{name: "irc"}
	m := NewManagerWith(mb, fake)

	require.NoError(t, m.StartAll(context.Background()))
	defer m.StopAll(context.Background())

	mb.PublishOutbound(bus.OutboundMessage{Channel: "nowhere", Content: "lost"})
	mb.PublishOutbound(bus.OutboundMessage{Channel: "irc", ChatID: "#lounge", Content: "BotA: hi"})

	require.Eventually(t, func() bool { return len(fake.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "BotA: hi", fake.Sent()[0].Content)
	assert.Equal(t, map[string]any{"irc": map[string]any{"running": true}}, m.GetStatus())
	assert.Equal(t, []string{"irc"}, m.GetEnabledChannels())
}

func TestManager_StartFailureStopsStarted(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	good := &fakeChannel{name: "good"}
	bad := &fakeChannel{name: "bad", failing: true}
	m := NewManagerWith(mb, good, bad)

	err := m.StartAll(context.Background())
	require.Error(t, err)
	assert.False(t, good.IsRunning())
}

func TestNewManager_SelectsTransport(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()

	cfg := config.DefaultConfig()
	cfg.Transport = config.TransportConsole
	m, err := NewManager(cfg, mb)
	require.NoError(t, err)
	ch, ok := m.GetChannel(config.TransportConsole)
	require.True(t, ok)
	assert.IsType(t, &ConsoleChannel{}, ch)

	cfg.Transport = config.TransportDiscord
	cfg.Discord.Token = ""
	_, err = NewManager(cfg, mb)
	assert.Error(t, err)

	cfg.Transport = config.TransportIRC
	cfg.IRC.Server = ""
	_, err = NewManager(cfg, mb)
	assert.Error(t, err)
}

func newTestIRC(t *testing.T, mb *bus.MessageBus) (*IRCChannel, *[]string, *int) {
	t.Helper()
	cfg := config.DefaultConfig().IRC
	cfg.Channel = "#lounge"
	c, err := NewIRCChannel(cfg, "BotA", mb)
	require.NoError(t, err)

	var sent []string
	quits := 0
	c.privmsg = func(target, text string) error {
		sent = append(sent, target+" "+text)
		return nil
	}
	c.quit = func() { quits++ }
	c.started.Store(true)
	c.setRunning(true)
	t.Cleanup(func() { _ = c.logPipe.Close() })
	return c, &sent, &quits
}

func TestNewIRCChannel_ConnectionSettings(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()

	cfg := config.DefaultConfig().IRC
	cfg.Server = "irc.example.net"
	cfg.Port = 6697
	cfg.TLS = true
	cfg.ReconnectDelaySeconds = 7
	c, err := NewIRCChannel(cfg, "BotA", mb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.logPipe.Close() })

	assert.Equal(t, "irc.example.net:6697", c.conn.Server)
	assert.True(t, c.conn.UseTLS)
	assert.Equal(t, 7*time.Second, c.conn.ReconnectFreq)
	assert.Equal(t, "BotA", c.conn.Nick)
}

func TestIRCChannel_PrivmsgFilteredToChannel(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	c, _, _ := newTestIRC(t, mb)

	c.onPrivmsg("Sam", "BotA", "psst, private")
	assertNoInbound(t, mb)

	c.onPrivmsg("Sam", "#Lounge", "hello all")
	msg := nextInbound(t, mb)
	assert.Equal(t, "Sam", msg.Sender)
	assert.Equal(t, "#lounge", msg.ChatID)
	assert.Equal(t, "hello all", msg.Content)
}

func TestIRCChannel_SendFlattensLines(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	c, sent, _ := newTestIRC(t, mb)

	require.NoError(t, c.Send(context.Background(), bus.OutboundMessage{Content: "one\r\ntwo"}))
	assert.Equal(t, []string{"#lounge one  two"}, *sent)
}

func TestIRCChannel_ConnectionLimitIsFatal(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	c, _, quits := newTestIRC(t, mb)

	c.onServerError("Closing Link: host (Ping timeout)")
	assertNoInbound(t, mb)
	assert.Zero(t, *quits)

	c.onServerError("Closing Link: host (Too many host connections (local))")
	msg := nextInbound(t, mb)
	assert.Equal(t, bus.KindDisconnect, msg.Kind)
	assert.True(t, msg.Fatal)
	assert.Contains(t, msg.Reason, ErrConnectionLimit.Error())
	assert.Equal(t, 1, *quits)

	// The library's own disconnect callback must not add a second event.
	c.onDisconnect()
	assertNoInbound(t, mb)

	err := c.Send(context.Background(), bus.OutboundMessage{Content: "anyone?"})
	assert.True(t, errors.Is(err, ErrNotRunning))
}

func TestIRCChannel_TransientDisconnect(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	c, _, _ := newTestIRC(t, mb)

	c.onDisconnect()
	msg := nextInbound(t, mb)
	assert.Equal(t, bus.KindDisconnect, msg.Kind)
	assert.False(t, msg.Fatal)
}

func newTestDiscord(t *testing.T, mb *bus.MessageBus) *DiscordChannel {
	t.Helper()
	c, err := NewDiscordChannel(config.DiscordConfig{Token: "token", ChannelID: "c1"}, mb)
	require.NoError(t, err)
	c.session.State.User = &discordgo.User{ID: "self"}
	return c
}

func discordMessage(authorID, username, channelID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		Author:    &discordgo.User{ID: authorID, Username: username},
		ChannelID: channelID,
		Content:   content,
	}}
}

func TestDiscordChannel_HandleMessage(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	c := newTestDiscord(t, mb)

	c.handleMessage(c.session, discordMessage("self", "BotA", "c1", "my own line"))
	c.handleMessage(c.session, discordMessage("u1", "sam", "other", "wrong channel"))
	assertNoInbound(t, mb)

	c.handleMessage(c.session, discordMessage("u1", "sam", "c1", "hello bots"))
	msg := nextInbound(t, mb)
	assert.Equal(t, "discord", msg.Channel)
	assert.Equal(t, "sam", msg.Sender)
	assert.Equal(t, "c1", msg.ChatID)
	assert.Equal(t, "hello bots", msg.Content)
}

func TestDiscordChannel_ConnectionEvents(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	c := newTestDiscord(t, mb)

	c.handleConnect(c.session, &discordgo.Connect{})
	assert.Equal(t, bus.KindConnect, nextInbound(t, mb).Kind)

	c.handleDisconnect(c.session, &discordgo.Disconnect{})
	msg := nextInbound(t, mb)
	assert.Equal(t, bus.KindDisconnect, msg.Kind)
	assert.False(t, msg.Fatal)
}

func TestDiscordChannel_Send(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	c := newTestDiscord(t, mb)

	var gotChannel, gotContent string
	c.send = func(channelID, content string) error {
		gotChannel, gotContent = channelID, content
		return nil
	}

	err := c.Send(context.Background(), bus.OutboundMessage{Content: "hi"})
	assert.True(t, errors.Is(err, ErrNotRunning))

	c.setRunning(true)
	require.NoError(t, c.Send(context.Background(), bus.OutboundMessage{Content: "hi"}))
	assert.Equal(t, "c1", gotChannel)
	assert.Equal(t, "hi", gotContent)
}

type fakeReader struct {
	lines chan string
	mu    sync.Mutex
	out   bytes.Buffer
}

func (f *fakeReader) Readline() (string, error) {
	line, ok := <-f.lines
	if !ok {
		return "", io.EOF
	}
	return line, nil
}
func (f *fakeReader) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.Write(p)
}
func (f *fakeReader) Output() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.String()
}
func (f *fakeReader) Stdout() io.Writer { return f }
func (f *fakeReader) Stderr() io.Writer { return io.Discard }
func (f *fakeReader) Close() error      { return nil }

func TestConsoleChannel_Session(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()

	reader := &fakeReader{lines: make(chan string)}
	c := NewConsoleChannel(config.ConsoleConfig{Nick: "greg"}, "BotA", mb)
	c.open = func(prompt string) (lineReader, error) {
		assert.Equal(t, "greg> ", prompt)
		return reader, nil
	}

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(context.Background())
	assert.Equal(t, bus.KindConnect, nextInbound(t, mb).Kind)

	reader.lines <- "hey BotA"
	msg := nextInbound(t, mb)
	assert.Equal(t, "greg", msg.Sender)
	assert.Equal(t, ConsoleChatID, msg.ChatID)
	assert.Equal(t, "hey BotA", msg.Content)

	require.NoError(t, c.Send(context.Background(), bus.OutboundMessage{Content: "BotA: hello greg"}))
	assert.Contains(t, reader.Output(), "BotA: hello greg\n")

	close(reader.lines)
	msg = nextInbound(t, mb)
	assert.Equal(t, bus.KindDisconnect, msg.Kind)
	assert.True(t, msg.Fatal)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("console did not finish")
	}
	assert.False(t, c.IsRunning())
}
