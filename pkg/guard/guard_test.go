package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity("Hello there", "hello THERE"), 1e-9)
	assert.InDelta(t, 1.0, Similarity("", ""), 1e-9)
	assert.InDelta(t, 0.0, Similarity("abc", "xyz"), 1e-9)
	// difflib: 2*M/T with M=3 matching runes of T=8.
	assert.InDelta(t, 0.75, Similarity("abcd", "bcde"), 1e-9)
}

func TestIsRepetitive(t *testing.T) {
	g := New("as a language model")

	assert.True(t, g.IsRepetitive("I spend IN IDLE HOURS thinking"))
	assert.True(t, g.IsRepetitive("well, As A Language Model I cannot"))
	assert.False(t, g.IsRepetitive("nice weather today"))

	var zero Guard
	assert.True(t, zero.IsRepetitive("ai chatbot personalities are fun"))
}

func TestIsLooping(t *testing.T) {
	g := New()
	recent := []string{
		"totally unrelated first line",
		"the market is crashing again, buy the dip",
		"pizza is the best food",
		"I love synthwave",
	}

	assert.True(t, g.IsLooping("the market is crashing again, buy the dip!", recent))
	assert.False(t, g.IsLooping("zzzz qqqq", recent))

	// Only the last three replies are considered.
	assert.False(t, g.IsLooping("totally unrelated first line", recent))
	assert.False(t, g.IsLooping("anything", nil))
}

func TestRepair_PicksFirstFreshSentence(t *testing.T) {
	g := New()
	recent := []string{"Money never sleeps."}

	out, ok := g.Repair("Money never sleeps. I spend in idle hours sulking. Buy low, sell high!", recent)
	require.True(t, ok)
	assert.Equal(t, "Buy low, sell high!", out)
}

func TestRepair_NothingQualifies(t *testing.T) {
	g := New()
	recent := []string{"Money never sleeps."}

	_, ok := g.Repair("Money never sleeps. money never sleeps!", recent)
	assert.False(t, ok)

	_, ok = g.Repair("   ", recent)
	assert.False(t, ok)
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("One. Two!  Three? four...five")
	assert.Equal(t, []string{"One.", "Two!", "Three?", "four...five"}, got)
	assert.Nil(t, SplitSentences(""))
	assert.Equal(t, []string{"no terminator"}, SplitSentences("no terminator"))
}
