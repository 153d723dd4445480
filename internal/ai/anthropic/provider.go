package anthropic

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dromeas/triage/internal/config"
	"github.com/dromeas/triage/pkg/models"
)

const systemPrompt = "You are a precise assistant for a yacht manufacturer's operations team. When asked for JSON, respond with a single JSON object and nothing else."

// Provider implements models.AIProvider using the Anthropic Messages API.
type Provider struct {
	client sdk.Client
	model  string
}

// NewProvider builds a Claude provider. SDK retries are disabled: the gateway
// falls back to another provider instead.
func NewProvider(cfg config.AnthropicConfig) *Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Provider{
		client: sdk.NewClient(opts...),
		model:  cfg.Model,
	}
}

func (p *Provider) Name() models.ProviderID { return models.ProviderClaude }

func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	msg, err := p.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(p.model),
		MaxTokens: int64(req.MaxTokens),
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("anthropic messages: no text content in response")
	}
	return b.String(), nil
}

var _ models.AIProvider = (*Provider)(nil)
