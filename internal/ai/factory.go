package ai

import (
	"context"
	"fmt"

	"github.com/dromeas/triage/internal/ai/anthropic"
	"github.com/dromeas/triage/internal/ai/gemini"
	"github.com/dromeas/triage/internal/ai/openai"
	"github.com/dromeas/triage/internal/config"
	"github.com/dromeas/triage/pkg/models"
)

// NewProviders constructs every provider whose API key is set, in fallback
// order. Called once at startup. An empty result is not an error: the gateway
// then answers with the default classification.
func NewProviders(ctx context.Context, cfg config.AIConfig) ([]models.AIProvider, error) {
	var providers []models.AIProvider

	if cfg.Anthropic.APIKey != "" {
		providers = append(providers, anthropic.NewProvider(cfg.Anthropic))
	}
	if cfg.OpenAI.APIKey != "" {
		providers = append(providers, openai.NewProvider(cfg.OpenAI))
	}
	if cfg.Gemini.APIKey != "" {
		p, err := gemini.NewProvider(ctx, cfg.Gemini)
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
		providers = append(providers, p)
	}

	return providers, nil
}

// NewGatewayFromConfig builds the providers and a gateway over them using the
// configured primary provider and inference timeout.
func NewGatewayFromConfig(ctx context.Context, cfg config.AIConfig, opts ...Option) (*Gateway, error) {
	providers, err := NewProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}
	base := []Option{
		WithPrimary(models.ProviderID(cfg.PrimaryProvider)),
		WithTimeout(cfg.InferenceTimeout),
	}
	return NewGateway(providers, append(base, opts...)...), nil
}
