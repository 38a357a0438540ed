package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyResponse is returned when a backend answers 2xx with no text.
var ErrEmptyResponse = errors.New("backend returned an empty response")

// Request is one generation call. Endpoint fields travel with the request so
// a config reload takes effect on the next call.
type Request struct {
	Provider string
	URL      string
	APIKey   string
	Model    string
	Prompt   string
	// System is the system override; empty means none is sent.
	System  string
	Timeout time.Duration
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// StatusError is a non-2xx answer from a backend.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s request failed: status %d", e.Provider, e.StatusCode)
	if body := augmentProviderError(e.Provider, e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
