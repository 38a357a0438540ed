package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ErrPromptsUnavailable is returned when the prompt bundle is missing,
// unreadable or empty. Turns are skipped while it holds.
var ErrPromptsUnavailable = errors.New("prompt bundle unavailable")

// PromptBundle holds the prompt templates the pipeline renders.
type PromptBundle struct {
	SystemInstructions string            `json:"system_instructions"`
	Tones              map[string]string `json:"tones"`
	OffTopicPrompt     string            `json:"off_topic_prompt"`
	RegularPrompt      string            `json:"regular_prompt"`
	RevivalInstruction string            `json:"revival_instruction,omitempty"`
}

// DefaultRevivalInstruction is appended to revival prompts when the bundle
// does not define one.
const DefaultRevivalInstruction = "\n\nThe channel has gone quiet. Pick the conversation back up by responding to {sender}, who earlier said: \"{message}\""

// LoadPrompts reads a prompt bundle from path.
func LoadPrompts(path string) (*PromptBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPromptsUnavailable, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrPromptsUnavailable, path)
	}

	var p PromptBundle
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrPromptsUnavailable, path, err)
	}
	if p.Empty() {
		return nil, fmt.Errorf("%w: %s has no templates", ErrPromptsUnavailable, path)
	}
	return &p, nil
}

// Empty reports whether the bundle has nothing to render.
func (p *PromptBundle) Empty() bool {
	if p == nil {
		return true
	}
	return strings.TrimSpace(p.RegularPrompt) == "" && strings.TrimSpace(p.OffTopicPrompt) == ""
}

// ToneNames returns tone keys in sorted order so a seeded pick is stable.
func (p *PromptBundle) ToneNames() []string {
	if p == nil || len(p.Tones) == 0 {
		return nil
	}
	names := make([]string, 0, len(p.Tones))
	for name := range p.Tones {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Revival returns the revival instruction, falling back to the default.
func (p *PromptBundle) Revival() string {
	if p != nil && strings.TrimSpace(p.RevivalInstruction) != "" {
		return p.RevivalInstruction
	}
	return DefaultRevivalInstruction
}

// Render substitutes {key} placeholders. Unknown placeholders are left as is.
func Render(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(vars)*2)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
