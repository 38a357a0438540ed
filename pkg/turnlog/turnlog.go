// Package turnlog records every line a bot hears and says. It is an audit
// trail only; nothing reads it back.
package turnlog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dotsetgreg/banter/pkg/config"
)

// SystemSpeaker is used for join and disconnect lines.
const SystemSpeaker = "System"

// Sink receives one call per turn.
type Sink interface {
	Record(ctx context.Context, speaker, text string) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Record(context.Context, string, string) error { return nil }
func (Nop) Close() error                                 { return nil }

// New builds the sink configured for cfg's bot.
func New(cfg *config.Config) (Sink, error) {
	if !cfg.Logging.Enabled {
		return Nop{}, nil
	}

	dir := strings.TrimSpace(cfg.Logging.LogDir)
	if dir == "" {
		dir = "logs"
	}

	switch cfg.Logging.Sink {
	case "", config.SinkFile:
		return NewFileSink(dir, cfg.Bot.Name)
	case config.SinkSQLite:
		return NewSQLiteSink(filepath.Join(dir, "turns.db"), cfg.Bot.Name)
	default:
		return nil, fmt.Errorf("unknown turn log sink %q", cfg.Logging.Sink)
	}
}
