// Banter - multi-personality channel chat bots
// License: MIT
//
// Copyright (c) 2026 DotAgent contributors

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

// HTTPProvider speaks the OpenAI-compatible chat completions API. The request
// URL is the API base; /chat/completions is appended.
type HTTPProvider struct {
	httpClient *http.Client
}

func NewHTTPProvider(client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPProvider{httpClient: client}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (p *HTTPProvider) Generate(ctx context.Context, r Request) (string, error) {
	apiBase := strings.TrimRight(strings.TrimSpace(r.URL), "/")
	if apiBase == "" {
		return "", fmt.Errorf("openai api base not configured")
	}

	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()

	messages := make([]chatMessage, 0, 2)
	if r.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: r.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: r.Prompt})

	requestBody := map[string]interface{}{
		"model":    r.Model,
		"messages": messages,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if r.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.APIKey)
	}

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
		return "", &StatusError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return p.parseResponse(body)
}

func (p *HTTPProvider) parseResponse(body []byte) (string, error) {
	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(apiResponse.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	text := strings.TrimSpace(apiResponse.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
