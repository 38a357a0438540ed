// Banter - multi-personality channel chat bots
// License: MIT
//
// Copyright (c) 2026 DotAgent contributors

// Package engine is the conversation engine: it turns inbound channel events
// into gated, delayed, guarded replies and keeps quiet channels alive.
package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dotsetgreg/banter/pkg/bus"
	"github.com/dotsetgreg/banter/pkg/config"
	"github.com/dotsetgreg/banter/pkg/gate"
	"github.com/dotsetgreg/banter/pkg/history"
	"github.com/dotsetgreg/banter/pkg/logger"
	"github.com/dotsetgreg/banter/pkg/providers"
	"github.com/dotsetgreg/banter/pkg/turnlog"
)

// Random is the randomness the engine draws from. Implementations must be
// safe for concurrent use.
type Random interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// Options wires an Engine. Source, Bus and Generator are required.
type Options struct {
	Source    config.Source
	Bus       *bus.MessageBus
	Generator providers.Generator
	Sink      turnlog.Sink

	// Test hooks; zero values use the real clock, sleeps and math/rand/v2.
	Rand  Random
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// limiter is one generation of the concurrency cap. Hot reload swaps in a
// new one; holders always release to the one they acquired from.
type limiter struct {
	sem  *semaphore.Weighted
	size int
}

func newLimiter(size int) *limiter {
	if size < 1 {
		size = 1
	}
	return &limiter{sem: semaphore.NewWeighted(int64(size)), size: size}
}

type target struct {
	channel string
	chatID  string
}

// Engine owns one bot's conversation state.
type Engine struct {
	source config.Source
	bus    *bus.MessageBus
	gen    providers.Generator
	sink   turnlog.Sink
	rnd    Random
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	history *history.History
	keys    *history.RecentKeys
	replies *history.Replies
	gate    *gate.Gate

	limiter atomic.Pointer[limiter]
	target  atomic.Pointer[target]

	lastInbound  atomic.Int64
	lastActivity atomic.Int64
	connected    atomic.Bool
	closed       atomic.Bool

	revival revivalState

	wg      sync.WaitGroup
	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

func New(opts Options) (*Engine, error) {
	if opts.Source == nil || opts.Source.Current() == nil {
		return nil, fmt.Errorf("engine: config source is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("engine: message bus is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("engine: generator is required")
	}
	if opts.Sink == nil {
		opts.Sink = turnlog.Nop{}
	}
	if opts.Rand == nil {
		opts.Rand = globalRand{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	cfg := opts.Source.Current()
	keys := history.NewRecentKeys(history.DefaultKeyCapacity)
	e := &Engine{
		source:  opts.Source,
		bus:     opts.Bus,
		gen:     opts.Generator,
		sink:    opts.Sink,
		rnd:     opts.Rand,
		now:     opts.Now,
		sleep:   opts.Sleep,
		history: history.New(cfg.Behavior.ConversationHistoryLength),
		keys:    keys,
		replies: history.NewReplies(history.DefaultReplyCapacity),
		gate:    gate.New(keys, opts.Rand.Float64),
	}
	e.limiter.Store(newLimiter(cfg.Behavior.MaxConcurrentRequests))
	now := e.now().UnixNano()
	e.lastInbound.Store(now)
	e.lastActivity.Store(now)
	return e, nil
}

// Run consumes the bus until ctx is cancelled, Stop is called, the bus
// closes, or the transport reports a fatal disconnect. It waits for
// in-flight replies before returning.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	if e.stopped {
		cancel()
	}
	e.mu.Unlock()
	defer func() {
		cancel()
		e.wg.Wait()
	}()

	cfg := e.source.Current()
	logger.InfoCF("engine", "Engine started", map[string]any{
		"bot":   cfg.Bot.Name,
		"model": cfg.Bot.Model,
	})

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.watchConfig(ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.revivalLoop(ctx)
	}()

	for {
		msg, ok := e.bus.ConsumeInbound(ctx)
		if !ok {
			return nil
		}

		switch msg.Kind {
		case bus.KindConnect:
			e.HandleConnect(ctx, msg)
		case bus.KindDisconnect:
			e.HandleDisconnect(ctx, msg)
			if e.closed.Load() {
				return fmt.Errorf("%w: %s", ErrTransportClosed, msg.Reason)
			}
		default:
			e.HandleMessage(ctx, msg)
		}
	}
}

// Stop cancels Run, or makes a later Run return at once. In-flight replies
// are abandoned at their next sleep.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	if e.cancel != nil {
		e.cancel()
	}
}

// HandleMessage runs one inbound line through the gate and, when accepted,
// starts a reply on its own goroutine.
func (e *Engine) HandleMessage(ctx context.Context, msg bus.InboundMessage) {
	arrived := e.now().UnixNano()
	e.lastInbound.Store(arrived)
	e.lastActivity.Store(arrived)
	e.rememberTarget(msg)

	cfg := e.source.Current()
	d := e.gate.Evaluate(msg.Content, msg.Sender, cfg)
	logger.DebugCF("gate", "Evaluated message", map[string]any{
		"bot":      cfg.Bot.Name,
		"sender":   msg.Sender,
		"respond":  d.Respond,
		"category": string(d.Category),
		"reason":   d.Reason,
	})
	if !d.Respond {
		return
	}

	e.history.Append(history.Turn{Speaker: msg.Sender, Text: msg.Content})
	e.record(ctx, msg.Sender, msg.Content)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.respond(ctx, cfg, arrived); err != nil {
			logger.DebugCF("engine", "Reply dropped", map[string]any{
				"bot":    cfg.Bot.Name,
				"reason": err.Error(),
			})
		}
	}()
}

func (e *Engine) HandleConnect(ctx context.Context, msg bus.InboundMessage) {
	e.rememberTarget(msg)
	e.connected.Store(true)
	e.lastActivity.Store(e.now().UnixNano())

	cfg := e.source.Current()
	logger.InfoCF("engine", "Connected", map[string]any{"bot": cfg.Bot.Name, "chat": msg.ChatID})
	e.record(ctx, turnlog.SystemSpeaker, fmt.Sprintf("%s has joined %s", cfg.Bot.Name, msg.ChatID))
}

// HandleDisconnect pauses revival. A fatal disconnect also stops all sends.
func (e *Engine) HandleDisconnect(ctx context.Context, msg bus.InboundMessage) {
	e.connected.Store(false)
	cfg := e.source.Current()
	e.record(ctx, turnlog.SystemSpeaker, fmt.Sprintf("%s has disconnected", cfg.Bot.Name))

	if msg.Fatal {
		e.closed.Store(true)
		logger.ErrorCF("engine", "Transport closed for good, no further replies", map[string]any{
			"bot":    cfg.Bot.Name,
			"reason": msg.Reason,
		})
		return
	}
	logger.WarnCF("engine", "Disconnected", map[string]any{"bot": cfg.Bot.Name, "reason": msg.Reason})
}

// Closed reports whether a fatal disconnect was seen.
func (e *Engine) Closed() bool { return e.closed.Load() }

// History returns a copy of the conversation history.
func (e *Engine) History() []history.Turn { return e.history.Snapshot() }

func (e *Engine) rememberTarget(msg bus.InboundMessage) {
	if msg.Channel == "" && msg.ChatID == "" {
		return
	}
	e.target.Store(&target{channel: msg.Channel, chatID: msg.ChatID})
}

func (e *Engine) record(ctx context.Context, speaker, text string) {
	if err := e.sink.Record(ctx, speaker, text); err != nil {
		logger.WarnCF("engine", "Turn log write failed", map[string]any{"error": err.Error()})
	}
}

// watchConfig applies capacity changes from hot reloads.
func (e *Engine) watchConfig(ctx context.Context) {
	changed := e.source.Changed()
	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			e.applyConfig(e.source.Current())
		}
	}
}

func (e *Engine) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	e.history.SetCapacity(cfg.Behavior.ConversationHistoryLength)

	if size := cfg.Behavior.MaxConcurrentRequests; size != e.limiter.Load().size {
		e.limiter.Store(newLimiter(size))
		logger.InfoCF("engine", "Concurrency cap changed", map[string]any{"max_concurrent_requests": size})
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// uniform returns a random duration in [0, d).
func (e *Engine) uniform(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(e.rnd.Float64() * float64(d))
}
