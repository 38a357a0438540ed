package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dotsetgreg/banter/pkg/bus"
	"github.com/dotsetgreg/banter/pkg/config"
	"github.com/dotsetgreg/banter/pkg/guard"
	"github.com/dotsetgreg/banter/pkg/history"
	"github.com/dotsetgreg/banter/pkg/logger"
	"github.com/dotsetgreg/banter/pkg/providers"
	"github.com/dotsetgreg/banter/pkg/sanitize"
)

// MaxReplyChars is the hard cap on a delivered reply, before the ellipsis.
const MaxReplyChars = 400

// FallbackLines are sent when generation fails or nothing usable survives
// the guard.
var FallbackLines = []string{
	"Sorry, my thoughts just went out for coffee.",
	"Could you rephrase that in haiku form?",
	"Oops. I forgot how to words. Try again?",
	"I blacked out and now I'm awake. What happened?",
	"My response module is offline. Please try again.",
	"🤖 Beep boop. No thoughts. Head empty.",
}

const toneDirective = "Reply in this style: %s (%s). Don't narrate your thinking; write only the line a person would actually type into a chat.\n\n"

// respond is one reply to an accepted message that arrived at the given
// time (unix nanos).
func (e *Engine) respond(ctx context.Context, cfg *config.Config, arrived int64) error {
	delay := cfg.PostDelay() + e.uniform(cfg.PostDelayJitter())
	if err := e.sleep(ctx, delay); err != nil {
		return err
	}
	if e.lastInbound.Load() > arrived {
		return ErrSuperseded
	}

	prompts := e.source.Prompts()
	if prompts.Empty() {
		logger.WarnCF("engine", "Skipping reply, prompt bundle unavailable", map[string]any{"bot": cfg.Bot.Name})
		return config.ErrPromptsUnavailable
	}

	prompt := e.buildPrompt(cfg, prompts)
	text, err := e.produce(ctx, cfg, prompts, prompt)
	if err != nil {
		return err
	}
	return e.deliver(ctx, cfg, text)
}

// buildPrompt renders the off-topic or regular template and maybe prepends
// a tone directive.
func (e *Engine) buildPrompt(cfg *config.Config, prompts *config.PromptBundle) string {
	vars := map[string]string{
		"bot_name":    cfg.Bot.Name,
		"personality": cfg.Bot.Personality,
	}

	template := prompts.RegularPrompt
	offTopic := strings.TrimSpace(prompts.OffTopicPrompt) != "" &&
		(strings.TrimSpace(template) == "" || e.rnd.Float64() < cfg.Behavior.OffTopicChance)
	if offTopic {
		template = prompts.OffTopicPrompt
	} else {
		turns := e.history.Snapshot()
		vars["summary"] = history.Summarize(turns, cfg.IsPrioritySpeaker, cfg.IsBotName)
		vars["history"] = history.Format(turns)
	}

	prompt := config.Render(template, vars)

	if names := prompts.ToneNames(); len(names) > 0 && e.rnd.Float64() < cfg.Behavior.ToneChance {
		name := names[e.rnd.IntN(len(names))]
		prompt = fmt.Sprintf(toneDirective, name, prompts.Tones[name]) + prompt
	}
	return prompt
}

// produce generates, cleans and guards a reply. Backend failure and guard
// rejection both end in a fallback line; only shutdown returns an error.
func (e *Engine) produce(ctx context.Context, cfg *config.Config, prompts *config.PromptBundle, prompt string) (string, error) {
	raw, err := e.generate(ctx, cfg, prompts, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return e.fallback(cfg, err.Error()), nil
	}

	text := sanitize.New(cfg.Bot.Name, e.rnd.IntN).Clean(raw)
	if text == "" {
		return e.fallback(cfg, "empty after sanitizing"), nil
	}

	g := guard.New(cfg.Behavior.ExtraBoilerplate...)
	recent := e.replies.Last(guard.LoopWindow)
	if g.Flagged(text, recent) {
		repaired, ok := g.Repair(text, recent)
		if !ok {
			return e.fallback(cfg, "looping or boilerplate with no usable sentence"), nil
		}
		logger.DebugCF("engine", "Repaired reply", map[string]any{"bot": cfg.Bot.Name})
		text = repaired
	}
	return text, nil
}

// generate calls the backend with up to MaxAttempts tries. The limiter slot
// is held only for the call itself, never across backoff.
func (e *Engine) generate(ctx context.Context, cfg *config.Config, prompts *config.PromptBundle, prompt string) (string, error) {
	req := providers.Request{
		Provider: cfg.Backend.Provider,
		URL:      cfg.Backend.URL,
		APIKey:   cfg.Backend.APIKey,
		Model:    cfg.Bot.Model,
		Prompt:   prompt,
		Timeout:  cfg.BackendTimeout(),
	}
	if cfg.ForwardsSystemPrompt() {
		req.System = prompts.SystemInstructions
	}

	attempts := cfg.Backend.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	callID := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		text, err := e.call(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		logger.WarnCF("engine", "Generation attempt failed", map[string]any{
			"bot":     cfg.Bot.Name,
			"call_id": callID,
			"attempt": attempt + 1,
			"of":      attempts,
			"error":   err.Error(),
		})
		if attempt == attempts-1 {
			break
		}
		if err := e.sleep(ctx, e.backoff(cfg.RetryBaseDelay(), attempt)); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

// backoff is base*2^attempt plus up to one second of jitter.
func (e *Engine) backoff(base time.Duration, attempt int) time.Duration {
	return time.Duration(float64(base)*math.Pow(2, float64(attempt))) + e.uniform(time.Second)
}

// call runs one backend request inside a limiter slot.
func (e *Engine) call(ctx context.Context, req providers.Request) (string, error) {
	lim := e.limiter.Load()
	if err := lim.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer lim.sem.Release(1)

	return e.gen.Generate(ctx, req)
}

func (e *Engine) fallback(cfg *config.Config, why string) string {
	line := FallbackLines[e.rnd.IntN(len(FallbackLines))]
	logger.InfoCF("engine", "Using fallback line", map[string]any{
		"bot":    cfg.Bot.Name,
		"reason": why,
	})
	return line
}

// deliver records the reply and hands it to the transport.
func (e *Engine) deliver(ctx context.Context, cfg *config.Config, text string) error {
	if e.closed.Load() {
		return ErrTransportClosed
	}
	tgt := e.target.Load()
	if tgt == nil {
		return ErrNoTarget
	}

	text = Truncate(text)
	e.history.Append(history.Turn{Speaker: cfg.Bot.Name, Text: text})
	e.replies.Add(text)
	e.record(ctx, cfg.Bot.Name, text)

	out := text
	if cfg.Behavior.PrefixReplies {
		out = cfg.Bot.Name + ": " + text
	}
	e.bus.PublishOutbound(bus.OutboundMessage{
		Channel: tgt.channel,
		ChatID:  tgt.chatID,
		Content: out,
	})
	logger.InfoCF("engine", "Replied", map[string]any{"bot": cfg.Bot.Name, "chars": len([]rune(text))})
	return nil
}

// Truncate removes line breaks and caps text at MaxReplyChars runes,
// marking a cut with "...".
func Truncate(text string) string {
	text = strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(text))
	r := []rune(text)
	if len(r) <= MaxReplyChars {
		return text
	}
	return string(r[:MaxReplyChars]) + "..."
}
