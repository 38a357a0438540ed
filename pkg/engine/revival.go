package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/dotsetgreg/banter/pkg/config"
	"github.com/dotsetgreg/banter/pkg/history"
	"github.com/dotsetgreg/banter/pkg/logger"
)

const (
	defaultRevivalPoll = 30 * time.Second
	// revivalCandidates is how many recent qualifying turns a revival
	// chooses from.
	revivalCandidates = 10
	revivalMinWords   = 3
)

// revivalState belongs to the revival loop. mu also keeps ticks from
// overlapping when Tick is driven by hand.
type revivalState struct {
	mu          sync.Mutex
	threshold   time.Duration
	windowStart int64
}

func (e *Engine) revivalLoop(ctx context.Context) {
	for {
		poll := e.source.Current().RevivalPoll()
		if poll <= 0 {
			poll = defaultRevivalPoll
		}
		if err := sleepContext(ctx, poll); err != nil {
			return
		}
		if e.closed.Load() {
			logger.InfoC("revival", "Transport closed, revival stopped")
			return
		}
		e.Tick(ctx)
	}
}

// Tick runs one revival check and reports whether a revival reply was made.
// Panics inside a tick are logged and swallowed.
func (e *Engine) Tick(ctx context.Context) (fired bool) {
	e.revival.mu.Lock()
	defer e.revival.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("revival", "Revival tick panicked", map[string]any{"panic": fmt.Sprint(r)})
			fired = false
		}
	}()

	cfg := e.source.Current()
	if !cfg.Revival.Enabled || !e.connected.Load() || e.closed.Load() {
		return false
	}

	now := e.now()
	if !e.inActiveWindow(cfg, now) {
		return false
	}

	last := e.lastActivity.Load()
	if e.revival.windowStart != last || e.revival.threshold == 0 {
		e.revival.windowStart = last
		e.revival.threshold = e.drawThreshold(cfg)
	}
	idle := now.Sub(time.Unix(0, last))
	if idle <= e.revival.threshold {
		return false
	}

	turn, ok := e.pickCandidate(cfg)
	if !ok {
		logger.DebugCF("revival", "Channel idle but nothing to revive", map[string]any{"bot": cfg.Bot.Name})
		return false
	}

	prompts := e.source.Prompts()
	if prompts.Empty() {
		logger.WarnCF("revival", "Skipping revival, prompt bundle unavailable", map[string]any{"bot": cfg.Bot.Name})
		return false
	}

	logger.InfoCF("revival", "Reviving quiet channel", map[string]any{
		"bot":    cfg.Bot.Name,
		"idle":   idle.Round(time.Second).String(),
		"sender": turn.Speaker,
	})

	e.history.AppendIfAbsent(turn)
	prompt := e.buildPrompt(cfg, prompts) + config.Render(prompts.Revival(), map[string]string{
		"bot_name": cfg.Bot.Name,
		"sender":   turn.Speaker,
		"message":  turn.Text,
	})

	text, err := e.produce(ctx, cfg, prompts, prompt)
	if err != nil {
		return false
	}
	if err := e.deliver(ctx, cfg, text); err != nil {
		logger.DebugCF("revival", "Revival reply not sent", map[string]any{"reason": err.Error()})
	}

	reset := e.now().UnixNano()
	e.lastActivity.Store(reset)
	e.revival.windowStart = reset
	e.revival.threshold = e.drawThreshold(cfg)
	return true
}

func (e *Engine) drawThreshold(cfg *config.Config) time.Duration {
	return cfg.IdleBase() + e.uniform(cfg.IdleJitter())
}

func (e *Engine) inActiveWindow(cfg *config.Config, now time.Time) bool {
	expr := strings.TrimSpace(cfg.Revival.ActiveSchedule)
	if expr == "" {
		return true
	}
	gron := gronx.New()
	due, err := gron.IsDue(expr, now)
	if err != nil {
		logger.WarnCF("revival", "Bad active schedule, ignoring it", map[string]any{
			"schedule": expr,
			"error":    err.Error(),
		})
		return true
	}
	return due
}

// pickCandidate chooses uniformly among the last few human turns long
// enough to be worth answering.
func (e *Engine) pickCandidate(cfg *config.Config) (history.Turn, bool) {
	turns := e.history.Snapshot()
	candidates := make([]history.Turn, 0, revivalCandidates)
	for i := len(turns) - 1; i >= 0 && len(candidates) < revivalCandidates; i-- {
		t := turns[i]
		if strings.EqualFold(t.Speaker, cfg.Bot.Name) || cfg.IsBotName(t.Speaker) {
			continue
		}
		if len(strings.Fields(t.Text)) <= revivalMinWords {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return history.Turn{}, false
	}
	return candidates[e.rnd.IntN(len(candidates))], true
}
