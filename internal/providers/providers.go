package providers

import (
	"context"
	"fmt"
	"strings"
)

// Config represents the configuration for an LLM provider
type Config struct {
	Model       string
	Temperature float64
	System      string
	Prompt      string
}

// Provider defines the interface for an LLM provider
type Provider interface {
	Complete(ctx context.Context, config Config) (string, error)
}

// Synthesizer binds a provider to a model and exposes a plain
// system/user completion call.
type Synthesizer struct {
	Provider    Provider
	Model       string
	Temperature float64
}

// Complete sends the system instruction and user payload to the provider and
// returns the trimmed reply
func (s *Synthesizer) Complete(ctx context.Context, system, payload string) (string, error) {
	text, err := s.Provider.Complete(ctx, Config{
		Model:       s.Model,
		Temperature: s.Temperature,
		System:      system,
		Prompt:      payload,
	})
	if err != nil {
		return "", err
	}

	text = strings.Trim(strings.TrimSpace(text), `"`)
	if text == "" {
		return "", fmt.Errorf("provider returned an empty completion")
	}
	return text, nil
}

// DefaultModel returns the text model used when none is configured
func DefaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4.1-mini"
	case "gemini":
		return "gemini-2.5-flash"
	case "ollama":
		return "mistral-small3.2:24b"
	default:
		return ""
	}
}
