package providers

import "strings"

func augmentProviderError(providerName, message string) string {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return msg
	}

	lower := strings.ToLower(msg)

	switch NormalizeProviderName(providerName) {
	case ProviderOllama:
		if strings.Contains(lower, "not found") && strings.Contains(lower, "model") {
			return msg + " Hint: the model is not pulled on this Ollama host; run `ollama pull <model>` there."
		}
		if strings.Contains(lower, "404 page not found") {
			return msg + " Hint: backend.url must include the path, e.g. http://localhost:11434/api/generate."
		}
	case ProviderOpenAI:
		if strings.Contains(lower, "incorrect api key provided") || strings.Contains(lower, "invalid api key") {
			return msg + " Hint: set backend.api_key or BANTER_BACKEND_API_KEY."
		}
	}

	return msg
}
