package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/dotsetgreg/banter/pkg/logger"
)

// DefaultWatchInterval is how often the watcher hashes the files.
const DefaultWatchInterval = 5 * time.Second

// Watcher polls the config and prompt files and publishes new snapshots into
// a Store when their content hash changes. Touching a file without changing
// its content does nothing.
type Watcher struct {
	configPath string
	interval   time.Duration
	overrides  []Override
	store      *Store

	configHash string
	promptPath string
	promptHash string
}

func NewWatcher(configPath string, interval time.Duration, overrides ...Override) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &Watcher{
		configPath: configPath,
		interval:   interval,
		overrides:  overrides,
	}
}

// Load performs the initial load. Unlike later polls, a broken config here is
// returned as an error; missing prompts are only logged.
func (w *Watcher) Load() (*Store, error) {
	cfg, err := LoadConfig(w.configPath, w.overrides...)
	if err != nil {
		return nil, err
	}
	w.configHash = hashFile(w.configPath)

	w.store = NewStore(cfg, nil)
	w.reloadPrompts(cfg.Files.PromptFile)
	return w.store, nil
}

// Start polls until ctx is done. Load must have succeeded first.
func (w *Watcher) Start(ctx context.Context) {
	if w.store == nil {
		logger.ErrorC("config", "Watcher started before Load")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll()
		}
	}
}

// Poll checks both files once.
func (w *Watcher) Poll() {
	if h := hashFile(w.configPath); h != w.configHash {
		w.configHash = h
		cfg, err := LoadConfig(w.configPath, w.overrides...)
		if err != nil {
			logger.WarnCF("config", "Config reload failed, keeping previous snapshot", map[string]any{
				"path":  w.configPath,
				"error": err.Error(),
			})
		} else {
			w.store.SetConfig(cfg)
			logger.InfoCF("config", "Config reloaded", map[string]any{"path": w.configPath})
		}
	}

	path := w.store.Current().Files.PromptFile
	if path != w.promptPath || hashFile(path) != w.promptHash {
		w.reloadPrompts(path)
	}
}

func (w *Watcher) reloadPrompts(path string) {
	w.promptPath = path
	w.promptHash = hashFile(path)

	p, err := LoadPrompts(path)
	if err != nil {
		logger.WarnCF("config", "Prompt bundle unavailable, turns will be skipped", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		w.store.SetPrompts(nil)
		return
	}
	w.store.SetPrompts(p)
	logger.InfoCF("config", "Prompt bundle loaded", map[string]any{
		"path":  path,
		"tones": len(p.Tones),
	})
}

// hashFile returns the hex SHA-256 of the file, or "" when it can't be read.
func hashFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

