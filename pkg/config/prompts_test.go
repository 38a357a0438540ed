package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrompts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.json")
	writeJSON(t, path, map[string]any{
		"system_instructions": "Stay in character.",
		"tones":               map[string]string{"snarky": "dry wit", "cheerful": "upbeat"},
		"off_topic_prompt":    "You are {bot_name}.",
		"regular_prompt":      "You are {bot_name}, {personality}.\n{summary}\n{history}",
	})

	p, err := LoadPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, "Stay in character.", p.SystemInstructions)
	assert.Equal(t, []string{"cheerful", "snarky"}, p.ToneNames())
	assert.Equal(t, DefaultRevivalInstruction, p.Revival())
}

func TestLoadPrompts_Unavailable(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadPrompts(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, ErrPromptsUnavailable))

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o600))
	_, err = LoadPrompts(empty)
	assert.True(t, errors.Is(err, ErrPromptsUnavailable))

	blank := filepath.Join(dir, "blank.json")
	require.NoError(t, os.WriteFile(blank, []byte(`{"tones":{}}`), 0o600))
	_, err = LoadPrompts(blank)
	assert.True(t, errors.Is(err, ErrPromptsUnavailable))
}

func TestRender(t *testing.T) {
	out := Render("{bot_name} is {personality}; {unknown} stays", map[string]string{
		"bot_name":    "BotA",
		"personality": "curious",
	})
	assert.Equal(t, "BotA is curious; {unknown} stays", out)
}

func TestRender_DoesNotReexpand(t *testing.T) {
	out := Render("{history}", map[string]string{
		"history":  "Bob: my name is {bot_name}",
		"bot_name": "BotA",
	})
	assert.Equal(t, "Bob: my name is {bot_name}", out)
}
