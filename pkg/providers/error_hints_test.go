package providers

import (
	"strings"
	"testing"
)

func TestAugmentProviderError_OllamaMissingModelHint(t *testing.T) {
	msg := augmentProviderError(ProviderOllama, `{"error":"model \"tinyllama\" not found, try pulling it first"}`)
	if !strings.Contains(msg, "ollama pull") {
		t.Fatalf("expected pull hint, got %q", msg)
	}
}

func TestAugmentProviderError_OllamaPathHint(t *testing.T) {
	msg := augmentProviderError(ProviderOllama, "404 page not found")
	if !strings.Contains(msg, "/api/generate") {
		t.Fatalf("expected path hint, got %q", msg)
	}
}

func TestAugmentProviderError_OpenAIKeyHint(t *testing.T) {
	msg := augmentProviderError("OpenAI", "Incorrect API key provided")
	if !strings.Contains(msg, "BANTER_BACKEND_API_KEY") {
		t.Fatalf("expected api key hint, got %q", msg)
	}
}

func TestAugmentProviderError_PassThrough(t *testing.T) {
	if got := augmentProviderError(ProviderOllama, "  boom  "); got != "boom" {
		t.Fatalf("expected trimmed message, got %q", got)
	}
	if got := augmentProviderError(ProviderOllama, ""); got != "" {
		t.Fatalf("expected empty message, got %q", got)
	}
}
