package ai

import (
	"fmt"
	"strings"
)

// Options carries everything a provider backend may need. Unused fields
// are ignored by backends that do not take them.
type Options struct {
	OllamaBaseURL     string
	OllamaModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	SiteURL           string
	AppName           string
}

// New builds the named provider backend.
func New(name string, opts Options) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "ollama":
		return NewOllamaProvider(opts.OllamaBaseURL, opts.OllamaModel), nil
	case "openrouter":
		return NewOpenRouterProvider(opts.OpenRouterBaseURL, opts.OpenRouterAPIKey,
			opts.OpenRouterModel, opts.SiteURL, opts.AppName), nil
	default:
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
}
