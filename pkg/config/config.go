package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dotsetgreg/banter/pkg/logger"
)

// Transport kinds.
const (
	TransportIRC     = "irc"
	TransportDiscord = "discord"
	TransportConsole = "console"
)

// Turn log sink kinds.
const (
	SinkFile   = "file"
	SinkSQLite = "sqlite"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// FlexibleString is a string that also accepts a JSON list and keeps its
// first element, so "channel": ["#lounge"] and "channel": "#lounge" both work.
type FlexibleString string

func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleString(s)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	if len(list) == 0 {
		*f = ""
		return nil
	}
	*f = FlexibleString(list[0])
	return nil
}

func (f *FlexibleString) UnmarshalText(text []byte) error {
	*f = FlexibleString(strings.TrimSpace(string(text)))
	return nil
}

func (f FlexibleString) String() string { return string(f) }

// Config is one immutable engine snapshot. Hot reload replaces the whole
// value; nothing mutates a published Config.
type Config struct {
	Transport string         `json:"transport" env:"BANTER_TRANSPORT"`
	IRC       IRCConfig      `json:"irc"`
	Discord   DiscordConfig  `json:"discord"`
	Console   ConsoleConfig  `json:"console"`
	Bot       BotConfig      `json:"bot"`
	Backend   BackendConfig  `json:"backend"`
	Behavior  BehaviorConfig `json:"behavior"`
	Revival   RevivalConfig  `json:"revival"`
	Logging   LoggingConfig  `json:"logging"`
	Files     FilesConfig    `json:"files"`
}

type IRCConfig struct {
	Server                string         `json:"server" env:"IRC_SERVER"`
	Port                  int            `json:"port" env:"IRC_PORT"`
	Channel               FlexibleString `json:"channel" env:"IRC_CHANNEL"`
	TLS                   bool           `json:"tls" env:"IRC_TLS"`
	Password              string         `json:"password,omitempty" env:"IRC_PASSWORD"`
	ReconnectDelaySeconds float64        `json:"reconnect_delay_seconds" env:"IRC_RECONNECT_DELAY_SECONDS"`
}

type DiscordConfig struct {
	Token     string `json:"token" env:"BANTER_DISCORD_TOKEN"`
	ChannelID string `json:"channel_id" env:"BANTER_DISCORD_CHANNEL_ID"`
}

type ConsoleConfig struct {
	Nick string `json:"nick" env:"BANTER_CONSOLE_NICK"`
}

type BotConfig struct {
	Name            string   `json:"name" env:"BOT_NAME"`
	Personality     string   `json:"personality" env:"BOT_PERSONALITY"`
	Model           string   `json:"model" env:"BOT_MODEL"`
	AlwaysRespondTo string   `json:"always_respond_to" env:"BOT_ALWAYS_RESPOND_TO"`
	BotPrefix       string   `json:"bot_prefix" env:"BOT_PREFIX"`
	KnownBots       []string `json:"known_bots" env:"BOT_KNOWN_BOTS" envSeparator:","`
}

type BackendConfig struct {
	Provider              string   `json:"provider" env:"BANTER_BACKEND_PROVIDER"`
	URL                   string   `json:"url" env:"OLLAMA_URL"`
	APIKey                string   `json:"api_key,omitempty" env:"BANTER_BACKEND_API_KEY"`
	TimeoutSeconds        float64  `json:"timeout_seconds" env:"BANTER_BACKEND_TIMEOUT_SECONDS"`
	MaxAttempts           int      `json:"max_attempts" env:"BANTER_BACKEND_MAX_ATTEMPTS"`
	RetryBaseDelaySeconds float64  `json:"retry_base_delay_seconds" env:"BANTER_BACKEND_RETRY_BASE_DELAY_SECONDS"`
	SystemOverrideModels  []string `json:"system_override_models" env:"BANTER_BACKEND_SYSTEM_OVERRIDE_MODELS" envSeparator:","`
}

// ResponseProbabilities is the chance of replying per message category.
type ResponseProbabilities struct {
	AlwaysRespondTo   float64 `json:"always_respond_to"`
	AddressedDirectly float64 `json:"addressed_directly"`
	Question          float64 `json:"question"`
	AddressedAnyBot   float64 `json:"addressed_any_bot"`
	OtherBotMessage   float64 `json:"other_bot_message"`
	GeneralMessage    float64 `json:"general_message"`
}

type BehaviorConfig struct {
	ResponseProbabilities     ResponseProbabilities `json:"response_probabilities"`
	OffTopicChance            float64               `json:"off_topic_chance" env:"BANTER_OFF_TOPIC_CHANCE"`
	ToneChance                float64               `json:"tone_chance" env:"BANTER_TONE_CHANCE"`
	PostDelaySeconds          float64               `json:"post_delay_seconds" env:"BANTER_POST_DELAY_SECONDS"`
	PostDelayJitter           float64               `json:"post_delay_jitter" env:"BANTER_POST_DELAY_JITTER"`
	MaxConcurrentRequests     int                   `json:"max_concurrent_requests" env:"BANTER_MAX_CONCURRENT_REQUESTS"`
	ConversationHistoryLength int                   `json:"conversation_history_length" env:"BANTER_CONVERSATION_HISTORY_LENGTH"`
	PrefixReplies             bool                  `json:"prefix_replies" env:"BANTER_PREFIX_REPLIES"`
	ExtraBoilerplate          []string              `json:"extra_boilerplate"`
}

type RevivalConfig struct {
	Enabled           bool    `json:"enabled" env:"BANTER_REVIVAL_ENABLED"`
	PollSeconds       float64 `json:"poll_seconds" env:"BANTER_REVIVAL_POLL_SECONDS"`
	IdleBaseSeconds   float64 `json:"idle_base_seconds" env:"BANTER_REVIVAL_IDLE_BASE_SECONDS"`
	IdleJitterSeconds float64 `json:"idle_jitter_seconds" env:"BANTER_REVIVAL_IDLE_JITTER_SECONDS"`
	// ActiveSchedule is an optional cron expression; revival only fires in
	// minutes it matches. Empty means always.
	ActiveSchedule string `json:"active_schedule" env:"BANTER_REVIVAL_ACTIVE_SCHEDULE"`
}

type LoggingConfig struct {
	Enabled bool   `json:"enabled" env:"BANTER_LOGGING_ENABLED"`
	LogDir  string `json:"log_dir" env:"BANTER_LOGGING_LOG_DIR"`
	Sink    string `json:"sink" env:"BANTER_LOGGING_SINK"`
	Level   string `json:"level" env:"BANTER_LOG_LEVEL"`
	Format  string `json:"format" env:"BANTER_LOG_FORMAT"`
}

type FilesConfig struct {
	PromptFile string `json:"prompt_file" env:"BANTER_PROMPT_FILE"`
}

func DefaultConfig() *Config {
	return &Config{
		Transport: TransportIRC,
		IRC: IRCConfig{
			Server:                "localhost",
			Port:                  6667,
			Channel:               "#lounge",
			ReconnectDelaySeconds: 15,
		},
		Console: ConsoleConfig{
			Nick: "you",
		},
		Bot: BotConfig{
			Name:            "BotA",
			Personality:     "a friendly regular who loves small talk",
			Model:           "tinyllama",
			AlwaysRespondTo: "Victoria",
			BotPrefix:       "Bot",
			KnownBots:       []string{"bota", "botb", "botc", "botd", "bote"},
		},
		Backend: BackendConfig{
			Provider:              "ollama",
			URL:                   "http://localhost:11434/api/generate",
			TimeoutSeconds:        350,
			MaxAttempts:           3,
			RetryBaseDelaySeconds: 3,
			SystemOverrideModels:  []string{"deepseek"},
		},
		Behavior: BehaviorConfig{
			ResponseProbabilities: ResponseProbabilities{
				AlwaysRespondTo:   1.0,
				AddressedDirectly: 1.0,
				Question:          1.0,
				AddressedAnyBot:   1.0,
				OtherBotMessage:   0.95,
				GeneralMessage:    0.0,
			},
			OffTopicChance:            0.1,
			ToneChance:                0.3,
			PostDelaySeconds:          5,
			PostDelayJitter:           10,
			MaxConcurrentRequests:     2,
			ConversationHistoryLength: 20,
			PrefixReplies:             true,
		},
		Revival: RevivalConfig{
			Enabled:           true,
			PollSeconds:       30,
			IdleBaseSeconds:   180,
			IdleJitterSeconds: 120,
		},
		Logging: LoggingConfig{
			Enabled: true,
			LogDir:  "logs",
			Sink:    SinkFile,
			Level:   "info",
			Format:  "text",
		},
		Files: FilesConfig{
			PromptFile: "prompts.json",
		},
	}
}

// Override adjusts a freshly loaded config. Overrides are re-applied on
// every reload so CLI flags and launcher identities survive hot reload.
type Override func(*Config)

// LoadConfig reads path over the defaults, then applies .env and process
// environment overrides. A missing file yields the defaults.
func LoadConfig(path string, overrides ...Override) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		applyLegacyOllama(data, cfg)
	}

	loadEnvFiles(filepath.Dir(path))
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	for _, o := range overrides {
		if o != nil {
			o(cfg)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// legacyFile holds keys from older config files that moved elsewhere.
type legacyFile struct {
	Ollama struct {
		URL string `json:"url"`
	} `json:"ollama"`
	Backend struct {
		URL *string `json:"url"`
	} `json:"backend"`
}

// applyLegacyOllama maps "ollama": {"url": ...} onto backend.url unless the
// file also sets backend.url.
func applyLegacyOllama(data []byte, cfg *Config) {
	var legacy legacyFile
	if err := json.Unmarshal(data, &legacy); err != nil {
		return
	}
	url := strings.TrimSpace(legacy.Ollama.URL)
	if url == "" || legacy.Backend.URL != nil {
		return
	}
	cfg.Backend.URL = url
	logger.InfoCF("config", "Using legacy ollama.url as backend.url", map[string]any{"url": url})
}

// loadEnvFiles loads .env from the working directory and the config
// directory. Existing variables are never overwritten.
func loadEnvFiles(configDir string) {
	candidates := []string{".env"}
	if configDir != "" && configDir != "." {
		candidates = append(candidates, filepath.Join(configDir, ".env"))
	}
	for _, f := range candidates {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			logger.WarnCF("config", "Ignoring unreadable .env file", map[string]any{
				"file":  f,
				"error": err.Error(),
			})
		}
	}
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Validate checks the invariants the engine relies on.
func Validate(cfg *Config) error {
	var problems []string
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Bot.Name) == "" {
		problems = append(problems, "bot.name is required")
	}
	if strings.TrimSpace(cfg.Bot.Model) == "" {
		problems = append(problems, "bot.model is required")
	}
	switch cfg.Transport {
	case TransportIRC, TransportDiscord, TransportConsole:
	default:
		problems = append(problems, fmt.Sprintf("transport %q is not one of irc, discord, console", cfg.Transport))
	}

	p := cfg.Behavior.ResponseProbabilities
	for name, v := range map[string]float64{
		"always_respond_to":  p.AlwaysRespondTo,
		"addressed_directly": p.AddressedDirectly,
		"question":           p.Question,
		"addressed_any_bot":  p.AddressedAnyBot,
		"other_bot_message":  p.OtherBotMessage,
		"general_message":    p.GeneralMessage,
		"off_topic_chance":   cfg.Behavior.OffTopicChance,
		"tone_chance":        cfg.Behavior.ToneChance,
	} {
		if v < 0 || v > 1 {
			problems = append(problems, fmt.Sprintf("%s must be within [0,1], got %v", name, v))
		}
	}
	if cfg.Behavior.PostDelaySeconds < 0 || cfg.Behavior.PostDelayJitter < 0 {
		problems = append(problems, "post delay and jitter must not be negative")
	}
	if cfg.Behavior.MaxConcurrentRequests < 1 {
		problems = append(problems, "behavior.max_concurrent_requests must be at least 1")
	}
	if cfg.Behavior.ConversationHistoryLength < 1 {
		problems = append(problems, "behavior.conversation_history_length must be at least 1")
	}
	if cfg.Backend.MaxAttempts < 1 {
		problems = append(problems, "backend.max_attempts must be at least 1")
	}
	if cfg.Revival.Enabled && cfg.Revival.PollSeconds <= 0 {
		problems = append(problems, "revival.poll_seconds must be positive")
	}
	gron := gronx.New()
	if expr := strings.TrimSpace(cfg.Revival.ActiveSchedule); expr != "" && !gron.IsValid(expr) {
		problems = append(problems, fmt.Sprintf("revival.active_schedule %q is not a valid cron expression", expr))
	}
	switch cfg.Logging.Sink {
	case "", SinkFile, SinkSQLite:
	default:
		problems = append(problems, fmt.Sprintf("logging.sink %q is not one of file, sqlite", cfg.Logging.Sink))
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Clone returns a deep copy, used when deriving per-bot configs.
func (c *Config) Clone() *Config {
	out := *c
	out.Bot.KnownBots = append([]string(nil), c.Bot.KnownBots...)
	out.Backend.SystemOverrideModels = append([]string(nil), c.Backend.SystemOverrideModels...)
	out.Behavior.ExtraBoilerplate = append([]string(nil), c.Behavior.ExtraBoilerplate...)
	return &out
}

func (c *Config) PostDelay() time.Duration      { return seconds(c.Behavior.PostDelaySeconds) }
func (c *Config) PostDelayJitter() time.Duration { return seconds(c.Behavior.PostDelayJitter) }
func (c *Config) BackendTimeout() time.Duration  { return seconds(c.Backend.TimeoutSeconds) }
func (c *Config) RetryBaseDelay() time.Duration  { return seconds(c.Backend.RetryBaseDelaySeconds) }
func (c *Config) RevivalPoll() time.Duration     { return seconds(c.Revival.PollSeconds) }
func (c *Config) IdleBase() time.Duration        { return seconds(c.Revival.IdleBaseSeconds) }
func (c *Config) IdleJitter() time.Duration      { return seconds(c.Revival.IdleJitterSeconds) }
func (c *Config) ReconnectDelay() time.Duration  { return c.IRC.ReconnectDelay() }

// ReconnectDelay is how long the IRC client waits before redialing.
func (c IRCConfig) ReconnectDelay() time.Duration { return seconds(c.ReconnectDelaySeconds) }

func seconds(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

// IsBotName reports whether speaker looks like one of the bots: it carries
// the configured bot prefix or is listed in known_bots.
func (c *Config) IsBotName(speaker string) bool {
	if prefix := c.Bot.BotPrefix; prefix != "" && strings.HasPrefix(speaker, prefix) {
		return true
	}
	lower := strings.ToLower(speaker)
	for _, b := range c.Bot.KnownBots {
		if strings.ToLower(strings.TrimSpace(b)) == lower && lower != "" {
			return true
		}
	}
	return false
}

// IsPrioritySpeaker reports whether speaker is the always-respond-to identity.
func (c *Config) IsPrioritySpeaker(speaker string) bool {
	return c.Bot.AlwaysRespondTo != "" && strings.EqualFold(speaker, c.Bot.AlwaysRespondTo)
}

// ForwardsSystemPrompt reports whether the system override is sent for the
// configured model: its name must start with one of SystemOverrideModels,
// or that list must contain "*".
func (c *Config) ForwardsSystemPrompt() bool {
	model := strings.ToLower(strings.TrimSpace(c.Bot.Model))
	for _, prefix := range c.Backend.SystemOverrideModels {
		prefix = strings.ToLower(strings.TrimSpace(prefix))
		if prefix == "*" {
			return true
		}
		if prefix != "" && strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}
