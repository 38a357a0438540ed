// Package sanitize cleans raw model output into a single chat line's worth
// of text: no self-name prefixes, no echoed instruction sections, and a
// length that fits the channel.
package sanitize

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dotsetgreg/banter/pkg/guard"
)

// MaxChars is the longest reply the sanitizer leaves untouched.
const MaxChars = 400

var metaSection = regexp.MustCompile(`(?is)(?:^|\n)[ \t]*(?:rules|instructions|guidelines|response)[ \t]*:.*?(?:\n[ \t]*\n|$)`)

// Sanitizer strips a bot's own name and prompt debris from generated text.
type Sanitizer struct {
	leading  *regexp.Regexp
	embedded *regexp.Regexp
	intn     func(n int) int
}

// New builds a sanitizer for botName. intn picks the kept-sentence count for
// overlong replies; nil uses math/rand/v2.
func New(botName string, intn func(n int) int) *Sanitizer {
	if intn == nil {
		intn = rand.IntN
	}
	name := regexp.QuoteMeta(strings.TrimSpace(botName))
	s := &Sanitizer{intn: intn}
	if name != "" {
		s.leading = regexp.MustCompile(`(?i)^` + name + `\b[:,]?\s*`)
		s.embedded = regexp.MustCompile(`(?i)\b` + name + `:\s*`)
	}
	return s
}

// Clean returns the sanitized reply. Results of MaxChars or fewer runes are
// returned intact, so Clean(Clean(x)) == Clean(x) for them.
func (s *Sanitizer) Clean(raw string) string {
	text := strings.TrimSpace(raw)
	// Removing a name can expose a heading and vice versa, so strip both
	// until neither changes anything.
	for {
		next := stripMeta(s.stripName(text))
		if next == text {
			break
		}
		text = next
	}

	if utf8.RuneCountInString(text) <= MaxChars {
		return text
	}
	return s.shorten(text)
}

func (s *Sanitizer) stripName(text string) string {
	if s.leading == nil {
		return text
	}
	for {
		next := strings.TrimSpace(s.leading.ReplaceAllString(text, ""))
		if next == text {
			break
		}
		text = next
	}
	return strings.TrimSpace(s.embedded.ReplaceAllString(text, ""))
}

func stripMeta(text string) string {
	for {
		next := metaSection.ReplaceAllString(text, "\n")
		next = strings.TrimSpace(next)
		if next == text {
			return text
		}
		text = next
	}
}

// shorten keeps one to three leading sentences, dropping sentences while the
// result is over MaxChars and adding one more when it still fits.
func (s *Sanitizer) shorten(text string) string {
	sentences := guard.SplitSentences(text)
	if len(sentences) <= 1 {
		return text
	}

	n := 1 + s.intn(3)
	if n > len(sentences) {
		n = len(sentences)
	}
	for n > 1 && runeLen(sentences[:n]) > MaxChars {
		n--
	}
	if n < len(sentences) && runeLen(sentences[:n+1]) <= MaxChars {
		n++
	}
	return strings.Join(sentences[:n], " ")
}

func runeLen(sentences []string) int {
	return utf8.RuneCountInString(strings.Join(sentences, " "))
}
