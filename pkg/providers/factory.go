package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Router dispatches each request to the generator registered for its
// provider name. An empty provider means ollama.
type Router struct {
	mu         sync.RWMutex
	generators map[string]Generator
}

// NewRouter returns a router with the built-in providers registered.
func NewRouter() *Router {
	r := &Router{generators: map[string]Generator{}}
	r.Register(ProviderOllama, NewOllamaProvider(nil))
	r.Register(ProviderOpenAI, NewHTTPProvider(nil))
	return r
}

func (r *Router) Register(name string, g Generator) {
	name = NormalizeProviderName(name)
	if name == "" || g == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[name] = g
}

func (r *Router) SupportedProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Router) Generate(ctx context.Context, req Request) (string, error) {
	name := NormalizeProviderName(req.Provider)
	if name == "" {
		name = ProviderOllama
	}

	r.mu.RLock()
	g, ok := r.generators[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unsupported provider %q (supported: %s)", req.Provider, strings.Join(r.SupportedProviders(), ", "))
	}
	return g.Generate(ctx, req)
}

func NormalizeProviderName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "openai-compatible", "openai_compatible", "chat-completions":
		return ProviderOpenAI
	}
	return name
}
