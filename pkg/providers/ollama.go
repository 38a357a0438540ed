package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OllamaProvider talks to Ollama's /api/generate. The request URL is used as
// is, so it must include the path.
type OllamaProvider struct {
	httpClient *http.Client
}

func NewOllamaProvider(client *http.Client) *OllamaProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &OllamaProvider{httpClient: client}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	System string `json:"system,omitempty"`
}

func (p *OllamaProvider) Generate(ctx context.Context, r Request) (string, error) {
	if strings.TrimSpace(r.URL) == "" {
		return "", fmt.Errorf("ollama url not configured")
	}

	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()

	jsonData, err := json.Marshal(ollamaRequest{
		Model:  r.Model,
		Prompt: r.Prompt,
		Stream: false,
		System: r.System,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Provider: ProviderOllama, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
