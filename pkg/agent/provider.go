package agent

import (
	"context"
	"fmt"
)

// LLMProvider is a single model backend.
type LLMProvider interface {
	// Call makes one model API call. If params.OnDelta is set the provider
	// streams text deltas through it; the returned result still carries the
	// full content.
	Call(ctx context.Context, params InvokeParams) (*InvokeResult, error)

	// Provider returns the provider name.
	Provider() string
}

// ProviderCreator creates LLM providers from auth profiles.
type ProviderCreator interface {
	NewProvider(profile AuthProfile) (LLMProvider, error)
}

// ProviderFactory is the default ProviderCreator.
type ProviderFactory struct{}

// NewProvider creates a provider based on the profile's provider field.
func (f *ProviderFactory) NewProvider(profile AuthProfile) (LLMProvider, error) {
	switch profile.Provider {
	case "anthropic":
		return NewAnthropicProvider(profile.APIKey, profile.BaseURL), nil
	case "openai":
		return NewOpenAIProvider(profile.APIKey, profile.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}
