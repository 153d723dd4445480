package mock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dromeas/triage/internal/ai"
	"github.com/dromeas/triage/internal/ai/mock"
	"github.com/dromeas/triage/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() models.CompletionRequest {
	return models.CompletionRequest{Prompt: "classify this", MaxTokens: 100, JSONMode: true}
}

// --- NewMockProvider ---

func TestNewMockProvider_Name(t *testing.T) {
	p := mock.NewMockProvider(models.ProviderGPT)
	assert.Equal(t, models.ProviderGPT, p.Name())
}

func TestNewMockProvider_ReturnsParseableClassification(t *testing.T) {
	p := mock.NewMockProvider(models.ProviderClaude)
	text, err := p.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)

	res, err := ai.ParseClassification(text)
	require.NoError(t, err)
	assert.Equal(t, models.CategorySalesInquiry, res.Category)
	assert.InDelta(t, 0.9, res.ConfidenceScore, 0.001)
	assert.Equal(t, 1, p.Calls())
}

// --- NewFailingProvider ---

func TestNewFailingProvider(t *testing.T) {
	p := mock.NewFailingProvider(models.ProviderGemini, ai.ErrProviderUnavailable)
	_, err := p.Complete(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ai.ErrProviderUnavailable))
}

// --- NewTimeoutProvider ---

func TestNewTimeoutProvider_RespectsContext(t *testing.T) {
	p := mock.NewTimeoutProvider(models.ProviderClaude)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Complete(ctx, sampleRequest())
	assert.True(t, errors.Is(err, ai.ErrInferenceTimeout))
	assert.Less(t, time.Since(start), 2*time.Second)
}

// --- Custom func ---

func TestMockProvider_CustomFunc(t *testing.T) {
	var got models.CompletionRequest
	p := &mock.MockProvider{
		Name_: "custom",
		CompleteFunc: func(_ context.Context, req models.CompletionRequest) (string, error) {
			got = req
			return "ok", nil
		},
	}

	text, err := p.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, "classify this", got.Prompt)
	assert.True(t, got.JSONMode)
}

func TestMockProvider_NilFunc(t *testing.T) {
	p := &mock.MockProvider{Name_: "empty"}
	text, err := p.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Empty(t, text)
}
