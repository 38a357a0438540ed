// Package guard flags generated replies that repeat known boilerplate or
// near-duplicate the bot's own recent output.
package guard

import (
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	// LoopThreshold is the similarity ratio above which a reply counts as a
	// repeat of an earlier one.
	LoopThreshold = 0.9
	// LoopWindow is how many of the most recent replies are compared.
	LoopWindow = 3
)

// DefaultPhrases are boilerplate fragments small models tend to echo back
// from the persona prompt.
var DefaultPhrases = []string{
	"when there is no one else present",
	"introspective and self-centered",
	"ai chatbot personalities",
	"in idle hours",
	"thoughts on the world or struggles with life's chaos",
}

// Guard holds the phrase set. The zero value uses DefaultPhrases.
type Guard struct {
	phrases []string
}

// New builds a guard from DefaultPhrases plus extra phrases. Matching is
// case-insensitive; blank extras are ignored.
func New(extra ...string) *Guard {
	phrases := make([]string, 0, len(DefaultPhrases)+len(extra))
	phrases = append(phrases, DefaultPhrases...)
	for _, p := range extra {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			phrases = append(phrases, p)
		}
	}
	return &Guard{phrases: phrases}
}

func (g *Guard) phraseSet() []string {
	if g == nil || len(g.phrases) == 0 {
		return DefaultPhrases
	}
	return g.phrases
}

// IsRepetitive reports whether text contains any known boilerplate phrase.
func (g *Guard) IsRepetitive(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range g.phraseSet() {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsLooping reports whether text is a near-duplicate of any of the last
// LoopWindow entries of recent (oldest first).
func (g *Guard) IsLooping(text string, recent []string) bool {
	if len(recent) > LoopWindow {
		recent = recent[len(recent)-LoopWindow:]
	}
	for _, prev := range recent {
		if Similarity(text, prev) > LoopThreshold {
			return true
		}
	}
	return false
}

// Flagged is IsLooping || IsRepetitive.
func (g *Guard) Flagged(text string, recent []string) bool {
	return g.IsLooping(text, recent) || g.IsRepetitive(text)
}

// Repair picks the first sentence of text that is neither boilerplate nor a
// near-duplicate of recent replies. ok is false when nothing qualifies.
func (g *Guard) Repair(text string, recent []string) (string, bool) {
	for _, s := range SplitSentences(text) {
		if s == "" {
			continue
		}
		if g.Flagged(s, recent) {
			continue
		}
		return s, true
	}
	return "", false
}

// Similarity returns the difflib sequence-matcher ratio of the lower-cased
// inputs, compared rune by rune. Two empty strings are identical (1.0).
func Similarity(a, b string) float64 {
	m := difflib.NewMatcher(runes(strings.ToLower(a)), runes(strings.ToLower(b)))
	return m.Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// SplitSentences splits after '.', '!' or '?' when followed by spaces. The
// terminator stays with its sentence; empty pieces are dropped.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	rs := []rune(text)
	start := 0
	for i := 0; i < len(rs); i++ {
		if rs[i] != '.' && rs[i] != '!' && rs[i] != '?' {
			continue
		}
		if i+1 >= len(rs) || rs[i+1] != ' ' {
			continue
		}
		out = appendSentence(out, string(rs[start:i+1]))
		j := i + 1
		for j < len(rs) && rs[j] == ' ' {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(rs) {
		out = appendSentence(out, string(rs[start:]))
	}
	return out
}

func appendSentence(out []string, s string) []string {
	s = strings.TrimFunc(s, unicode.IsSpace)
	if s == "" {
		return out
	}
	return append(out, s)
}
