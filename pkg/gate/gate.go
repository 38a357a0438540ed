// Package gate decides whether the bot should answer an incoming line.
package gate

import (
	"math/rand/v2"
	"strings"

	"github.com/dotsetgreg/banter/pkg/config"
	"github.com/dotsetgreg/banter/pkg/history"
)

// Category is the message class that selects a response probability.
type Category string

const (
	CategoryNone              Category = ""
	CategoryAlwaysRespondTo   Category = "always_respond_to"
	CategoryAddressedDirectly Category = "addressed_directly"
	CategoryQuestion          Category = "question"
	CategoryAddressedAnyBot   Category = "addressed_any_bot"
	CategoryOtherBotMessage   Category = "other_bot_message"
	CategoryGeneralMessage    Category = "general_message"
)

// Rejection reasons reported in Decision.Reason.
const (
	ReasonOwnMessage  = "own_message"
	ReasonDuplicate   = "duplicate"
	ReasonTooLong     = "too_long"
	ReasonPastedLog   = "pasted_log"
	ReasonOwnRelay    = "own_relay"
	ReasonProbability = "probability"
	ReasonAccepted    = "accepted"
)

const (
	// DuplicateRejectChance is how often a repeated body is dropped.
	DuplicateRejectChance = 0.9
	MaxWords              = 80
	MaxColons             = 3
)

type Decision struct {
	Respond  bool
	Category Category
	Reason   string
}

// Gate evaluates inbound lines against the current config. The only state it
// touches is the recent-keys set, and only on acceptance.
type Gate struct {
	keys  *history.RecentKeys
	float func() float64
}

// New returns a gate over keys. A nil float source uses math/rand/v2.
func New(keys *history.RecentKeys, float func() float64) *Gate {
	if keys == nil {
		keys = history.NewRecentKeys(history.DefaultKeyCapacity)
	}
	if float == nil {
		float = rand.Float64
	}
	return &Gate{keys: keys, float: float}
}

func (g *Gate) Evaluate(message, sender string, cfg *config.Config) Decision {
	name := cfg.Bot.Name
	if strings.EqualFold(strings.TrimSpace(sender), name) {
		return Decision{Reason: ReasonOwnMessage}
	}

	if g.keys.Seen(message) && g.float() < DuplicateRejectChance {
		return Decision{Reason: ReasonDuplicate}
	}

	if len(strings.Fields(message)) > MaxWords {
		return Decision{Reason: ReasonTooLong}
	}
	if strings.Count(message, ":") > MaxColons {
		return Decision{Reason: ReasonPastedLog}
	}
	if name != "" && strings.HasPrefix(strings.ToLower(message), strings.ToLower(name)+":") {
		return Decision{Reason: ReasonOwnRelay}
	}

	category := Classify(message, sender, cfg)
	p := Probability(category, cfg)
	if p <= 0 || g.float() > p {
		return Decision{Category: category, Reason: ReasonProbability}
	}

	g.keys.Add(message)
	return Decision{Respond: true, Category: category, Reason: ReasonAccepted}
}

// Classify returns the first matching category.
func Classify(message, sender string, cfg *config.Config) Category {
	lower := strings.ToLower(message)
	own := strings.ToLower(cfg.Bot.Name)

	switch {
	case cfg.IsPrioritySpeaker(sender):
		return CategoryAlwaysRespondTo
	case own != "" && strings.Contains(lower, own):
		return CategoryAddressedDirectly
	case strings.HasSuffix(strings.TrimSpace(message), "?"):
		return CategoryQuestion
	case mentionsOtherBot(lower, own, cfg.Bot.KnownBots):
		return CategoryAddressedAnyBot
	case cfg.Bot.BotPrefix != "" && strings.HasPrefix(sender, cfg.Bot.BotPrefix):
		return CategoryOtherBotMessage
	default:
		return CategoryGeneralMessage
	}
}

func mentionsOtherBot(lower, own string, known []string) bool {
	for _, b := range known {
		b = strings.ToLower(strings.TrimSpace(b))
		if b == "" || b == own {
			continue
		}
		if strings.Contains(lower, b) {
			return true
		}
	}
	return false
}

// Probability looks up the configured response probability for c.
func Probability(c Category, cfg *config.Config) float64 {
	p := cfg.Behavior.ResponseProbabilities
	switch c {
	case CategoryAlwaysRespondTo:
		return p.AlwaysRespondTo
	case CategoryAddressedDirectly:
		return p.AddressedDirectly
	case CategoryQuestion:
		return p.Question
	case CategoryAddressedAnyBot:
		return p.AddressedAnyBot
	case CategoryOtherBotMessage:
		return p.OtherBotMessage
	case CategoryGeneralMessage:
		return p.GeneralMessage
	default:
		return 0
	}
}
