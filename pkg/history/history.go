// Package history holds the engine's bounded conversational state: the turn
// log used to build prompts, the recently seen message keys used for
// de-duplication, and the bot's own recent replies used for loop detection.
//
// Every exported method is atomic with respect to the structure it touches;
// no cross-structure transactions are offered.
package history

import (
	"fmt"
	"strings"
	"sync"
)

// Turn is one line of conversation. Turns are values and never mutated after
// they are appended.
type Turn struct {
	Speaker string
	Text    string
}

func (t Turn) String() string {
	return fmt.Sprintf("%s: %s", t.Speaker, t.Text)
}

// History is a FIFO-bounded log of turns in arrival order.
type History struct {
	mu       sync.RWMutex
	capacity int
	turns    []Turn
}

// New returns a history holding at most capacity turns (minimum 1).
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{capacity: capacity}
}

// Append pushes turn to the tail and evicts from the head while over
// capacity.
func (h *History) Append(turn Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appendLocked(turn)
}

// AppendIfAbsent appends turn only when an equal turn is not already held.
// It reports whether the turn was appended.
func (h *History) AppendIfAbsent(turn Turn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range h.turns {
		if t == turn {
			return false
		}
	}
	h.appendLocked(turn)
	return true
}

func (h *History) appendLocked(turn Turn) {
	h.turns = append(h.turns, turn)
	h.trimLocked()
}

func (h *History) trimLocked() {
	if over := len(h.turns) - h.capacity; over > 0 {
		kept := make([]Turn, h.capacity)
		copy(kept, h.turns[over:])
		h.turns = kept
	}
}

// SetCapacity changes the bound; shrinking evicts the oldest turns.
func (h *History) SetCapacity(capacity int) {
	if capacity <= 0 {
		capacity = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.capacity = capacity
	h.trimLocked()
}

func (h *History) Capacity() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.capacity
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Snapshot returns a copy of the turns, oldest first.
func (h *History) Snapshot() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Format renders turns one per line as "speaker: text".
func Format(turns []Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.String())
	}
	return strings.Join(lines, "\n")
}

// Summarize reduces turns to the lines worth keeping in a compact prompt:
// priority speakers verbatim, bots as "{bot} made a comment.", everyone else
// dropped. Order is preserved.
func Summarize(turns []Turn, isPriority, isBot func(speaker string) bool) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		switch {
		case isPriority != nil && isPriority(t.Speaker):
			lines = append(lines, t.String())
		case isBot != nil && isBot(t.Speaker):
			lines = append(lines, t.Speaker+" made a comment.")
		}
	}
	return strings.Join(lines, "\n")
}
