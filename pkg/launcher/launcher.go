// Package launcher plans and runs several bots in one process, each with its
// own name, personality, transport and engine.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dotsetgreg/banter/pkg/config"
	"github.com/dotsetgreg/banter/pkg/logger"
)

const (
	DefaultModel   = "tinyllama"
	DefaultStagger = 5 * time.Second
	namePrefix     = "Bot"
)

// ErrTooManyBots is returned when more bots are asked for than there are
// distinct personalities.
var ErrTooManyBots = errors.New("not enough distinct personalities")

// Identity is one bot of a launch.
type Identity struct {
	Name        string
	Personality string
	Model       string
}

// Override applies the identity on top of a loaded config.
func (id Identity) Override() config.Override {
	return func(c *config.Config) {
		c.Bot.Name = id.Name
		c.Bot.Personality = id.Personality
		c.Bot.Model = id.Model
	}
}

// BotName returns the name of the i-th bot: BotA, BotB, ... wrapping after Z.
func BotName(i int) string {
	if i < 0 {
		i = -i
	}
	return namePrefix + string(rune('A'+i%26))
}

// Plan picks n distinct personalities. shuffle may be nil for math/rand/v2.
func Plan(n int, model string, shuffle func(n int, swap func(i, j int))) ([]Identity, error) {
	if n < 1 {
		return nil, fmt.Errorf("need at least one bot, got %d", n)
	}
	if n > len(Personalities) {
		return nil, fmt.Errorf("%w: asked for %d, have %d", ErrTooManyBots, n, len(Personalities))
	}
	if model == "" {
		model = DefaultModel
	}
	if shuffle == nil {
		shuffle = rand.Shuffle
	}

	pool := append([]string(nil), Personalities...)
	shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	ids := make([]Identity, n)
	for i := range ids {
		ids[i] = Identity{Name: BotName(i), Personality: pool[i], Model: model}
	}
	return ids, nil
}

// StartFunc runs one bot until ctx is done or the bot stops for good.
type StartFunc func(ctx context.Context, id Identity) error

// Run starts each identity in turn, waiting stagger between starts, and
// blocks until all bots have returned. A bot that fails is logged and left
// down; the others keep running. The returned error joins every failure.
func Run(ctx context.Context, ids []Identity, stagger time.Duration, start StartFunc) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)

	for i, id := range ids {
		if i > 0 && stagger > 0 {
			t := time.NewTimer(stagger)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
		if ctx.Err() != nil {
			break
		}

		logger.InfoCF("launcher", "Launching bot", map[string]any{
			"name":        id.Name,
			"personality": id.Personality,
			"model":       id.Model,
		})
		g.Go(func() error {
			if err := start(ctx, id); err != nil {
				logger.ErrorCF("launcher", "Bot stopped with error", map[string]any{
					"name":  id.Name,
					"error": err.Error(),
				})
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", id.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	return errors.Join(errs...)
}
