package openai

import (
	"context"
	"fmt"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/dromeas/triage/internal/config"
	"github.com/dromeas/triage/pkg/models"
)

// Provider implements models.AIProvider using OpenAI chat completions.
type Provider struct {
	client sdk.Client
	model  string
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
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

func (p *Provider) Name() models.ProviderID { return models.ProviderGPT }

func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	params := sdk.ChatCompletionNewParams{
		Model: p.model,
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.UserMessage(req.Prompt),
		},
		MaxCompletionTokens: sdk.Int(int64(req.MaxTokens)),
	}
	if req.JSONMode {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ models.AIProvider = (*Provider)(nil)
