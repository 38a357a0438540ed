package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/banter/pkg/logger"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, 350.0, cfg.Backend.TimeoutSeconds)
	assert.Equal(t, 3, cfg.Backend.MaxAttempts)
	assert.Equal(t, []string{"deepseek"}, cfg.Backend.SystemOverrideModels)
	assert.Equal(t, 30.0, cfg.Revival.PollSeconds)
	assert.Equal(t, 180.0, cfg.Revival.IdleBaseSeconds)
	assert.Equal(t, 120.0, cfg.Revival.IdleJitterSeconds)
	assert.Equal(t, "Bot", cfg.Bot.BotPrefix)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Bot.Name, cfg.Bot.Name)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, path, map[string]any{
		"bot": map[string]any{"name": "BotQ", "model": "llama3"},
		"behavior": map[string]any{
			"response_probabilities": map[string]any{"general_message": 0.25},
		},
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "BotQ", cfg.Bot.Name)
	assert.Equal(t, "llama3", cfg.Bot.Model)
	assert.Equal(t, 0.25, cfg.Behavior.ResponseProbabilities.GeneralMessage)
	// Untouched siblings keep their defaults.
	assert.Equal(t, 0.95, cfg.Behavior.ResponseProbabilities.OtherBotMessage)
}

func TestLoadConfig_ChannelAcceptsList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, path, map[string]any{
		"irc": map[string]any{"channel": []string{"#first", "#second"}},
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "#first", cfg.IRC.Channel.String())
}

func TestLoadConfig_EnvThenOverridesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, path, map[string]any{
		"bot": map[string]any{"name": "FromFile", "personality": "file person"},
		"irc": map[string]any{"port": 6667},
	})

	t.Setenv("BOT_NAME", "FromEnv")
	t.Setenv("BOT_PERSONALITY", "env person")
	t.Setenv("IRC_PORT", "7000")
	t.Setenv("OLLAMA_URL", "http://gpu:11434/api/generate")
	t.Setenv("BOT_KNOWN_BOTS", "alpha,beta")

	cfg, err := LoadConfig(path, func(c *Config) { c.Bot.Name = "FromFlag" })
	require.NoError(t, err)

	assert.Equal(t, "FromFlag", cfg.Bot.Name)
	assert.Equal(t, "env person", cfg.Bot.Personality)
	assert.Equal(t, 7000, cfg.IRC.Port)
	assert.Equal(t, "http://gpu:11434/api/generate", cfg.Backend.URL)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Bot.KnownBots)
}

func TestLoadConfig_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"probability above one", func(c *Config) { c.Behavior.ResponseProbabilities.Question = 1.5 }},
		{"negative chance", func(c *Config) { c.Behavior.ToneChance = -0.1 }},
		{"empty name", func(c *Config) { c.Bot.Name = " " }},
		{"zero concurrency", func(c *Config) { c.Behavior.MaxConcurrentRequests = 0 }},
		{"zero history", func(c *Config) { c.Behavior.ConversationHistoryLength = 0 }},
		{"unknown transport", func(c *Config) { c.Transport = "carrier-pigeon" }},
		{"bad schedule", func(c *Config) { c.Revival.ActiveSchedule = "not a cron" }},
		{"unknown sink", func(c *Config) { c.Logging.Sink = "kafka" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestValidate_AcceptsSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Revival.ActiveSchedule = "* 9-17 * * 1-5"
	assert.NoError(t, Validate(cfg))
}

func TestForwardsSystemPrompt(t *testing.T) {
	cfg := DefaultConfig()

	cfg.Bot.Model = "deepseek-r1:7b"
	assert.True(t, cfg.ForwardsSystemPrompt())

	cfg.Bot.Model = "tinyllama"
	assert.False(t, cfg.ForwardsSystemPrompt())

	cfg.Backend.SystemOverrideModels = []string{"*"}
	assert.True(t, cfg.ForwardsSystemPrompt())

	cfg.Backend.SystemOverrideModels = nil
	assert.False(t, cfg.ForwardsSystemPrompt())
}

func TestIsBotName(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.IsBotName("BotC"))
	assert.True(t, cfg.IsBotName("bote"))
	assert.False(t, cfg.IsBotName("Victoria"))
	assert.False(t, cfg.IsBotName("botanist"))
	assert.True(t, cfg.IsPrioritySpeaker("victoria"))
}

func TestClone_IsDeep(t *testing.T) {
	cfg := DefaultConfig()
	cp := cfg.Clone()
	cp.Bot.KnownBots[0] = "changed"
	cp.Bot.Name = "Other"

	assert.Equal(t, "bota", cfg.Bot.KnownBots[0])
	assert.Equal(t, "BotA", cfg.Bot.Name)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Bot.Name = "BotR"
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "BotR", loaded.Bot.Name)
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Behavior.PostDelaySeconds = 1.5
	cfg.Backend.TimeoutSeconds = -1

	assert.Equal(t, "1.5s", cfg.PostDelay().String())
	assert.Zero(t, cfg.BackendTimeout())

	cfg.IRC.ReconnectDelaySeconds = 2
	assert.Equal(t, 2*time.Second, cfg.IRC.ReconnectDelay())
	assert.Equal(t, cfg.IRC.ReconnectDelay(), cfg.ReconnectDelay())
}

func TestLoadConfig_LegacyOllamaURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	writeJSON(t, path, map[string]any{
		"ollama": map[string]any{"url": "http://gpu:11434/api/generate"},
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://gpu:11434/api/generate", cfg.Backend.URL)

	writeJSON(t, path, map[string]any{
		"ollama":  map[string]any{"url": "http://old:11434/api/generate"},
		"backend": map[string]any{"url": "http://new:11434/api/generate"},
	})
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://new:11434/api/generate", cfg.Backend.URL)
}

func TestLoadConfig_WarnsOnBrokenEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BAD-KEY=1\n"), 0o600))

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(nil)

	_, err := LoadConfig(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Ignoring unreadable .env file")
	_, set := os.LookupEnv("BAD-KEY")
	assert.False(t, set)
}
