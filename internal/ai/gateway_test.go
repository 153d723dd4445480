package ai_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dromeas/triage/internal/ai"
	"github.com/dromeas/triage/internal/ai/mock"
	"github.com/dromeas/triage/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invoiceJSON = `{
  "category": "financial",
  "priority": "high",
  "urgency": "this_week",
  "summary": "Supplier reminds that invoice INV-2231 for EUR 25,000 is overdue and due Feb 28.",
  "extracted_numbers": [{"value": 25000, "currency": "EUR", "context": "overdue invoice amount", "type": "invoice", "confidence": 0.95}],
  "extracted_dates": [{"date": "2026-02-28", "context": "payment due", "type": "payment"}],
  "suggested_actions": ["Forward to accounting", "Confirm payment date"],
  "entities": [{"name": "Nautica Parts", "type": "company", "context": "supplier"}],
  "sentiment": "negative",
  "requires_response": true,
  "confidence_score": 0.88
}`

func invoiceRequest() models.ClassificationRequest {
	return models.ClassificationRequest{
		Sender:  "billing@nauticaparts.example",
		Subject: "Invoice overdue",
		Body:    "Dear Dromeas team, our invoice INV-2231 of €25,000 due Feb 28 is still open.",
	}
}

func jsonWith(t *testing.T, replacements ...string) string {
	t.Helper()
	return strings.NewReplacer(replacements...).Replace(invoiceJSON)
}

func TestClassify_InvoiceScenario(t *testing.T) {
	p := mock.NewStaticProvider(models.ProviderClaude, invoiceJSON)
	g := ai.NewGateway([]models.AIProvider{p})

	res, err := g.Classify(context.Background(), invoiceRequest())
	require.NoError(t, err)

	want, err := ai.ParseClassification(invoiceJSON)
	require.NoError(t, err)
	want.Provider = models.ProviderClaude

	assert.Equal(t, want, res)
	assert.Equal(t, models.CategoryFinancial, res.Category)
	assert.Equal(t, models.PriorityHigh, res.Priority)
	require.Len(t, res.ExtractedNumbers, 1)
	assert.Equal(t, 25000.0, res.ExtractedNumbers[0].Value)
	assert.Equal(t, "EUR", res.ExtractedNumbers[0].Currency)
}

func TestClassify_ProviderStampMatchesProducer(t *testing.T) {
	claude := mock.NewFailingProvider(models.ProviderClaude, errors.New("overloaded"))
	gpt := mock.NewMockProvider(models.ProviderGPT)
	gemini := mock.NewMockProvider(models.ProviderGemini)
	g := ai.NewGateway([]models.AIProvider{gemini, gpt, claude})

	res, err := g.Classify(context.Background(), invoiceRequest())
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGPT, res.Provider)
	assert.Equal(t, 1, claude.Calls())
	assert.Equal(t, 1, gpt.Calls())
	assert.Equal(t, 0, gemini.Calls())
}

func TestClassify_PreferredProviderFirst(t *testing.T) {
	claude := mock.NewMockProvider(models.ProviderClaude)
	gemini := mock.NewMockProvider(models.ProviderGemini)
	g := ai.NewGateway([]models.AIProvider{claude, gemini})

	req := invoiceRequest()
	req.PreferredProvider = models.ProviderGemini
	res, err := g.Classify(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGemini, res.Provider)
	assert.Equal(t, 0, claude.Calls())
}

func TestClassify_PrimaryUsedWhenNoPreference(t *testing.T) {
	claude := mock.NewMockProvider(models.ProviderClaude)
	gpt := mock.NewMockProvider(models.ProviderGPT)
	g := ai.NewGateway([]models.AIProvider{claude, gpt}, ai.WithPrimary(models.ProviderGPT))

	res, err := g.Classify(context.Background(), invoiceRequest())
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGPT, res.Provider)
	assert.Equal(t, 0, claude.Calls())
}

func TestClassify_UnconfiguredPreferredFallsBack(t *testing.T) {
	gpt := mock.NewMockProvider(models.ProviderGPT)
	g := ai.NewGateway([]models.AIProvider{gpt})

	req := invoiceRequest()
	req.PreferredProvider = models.ProviderClaude
	res, err := g.Classify(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGPT, res.Provider)
	assert.NotEqual(t, ai.DefaultResult().Summary, res.Summary)
	assert.Equal(t, 1, gpt.Calls())
}

func TestClassify_NoProviders(t *testing.T) {
	g := ai.NewGateway(nil)

	res, err := g.Classify(context.Background(), invoiceRequest())
	assert.ErrorIs(t, err, ai.ErrNoProvidersConfigured)
	assert.Equal(t, ai.DefaultResult(), res)
	assert.Equal(t, models.CategoryOther, res.Category)
	assert.Zero(t, res.ConfidenceScore)
	assert.Equal(t, models.ProviderID(""), res.Provider)
}

func TestClassify_MalformedResponseReturnsDefault(t *testing.T) {
	p := mock.NewStaticProvider(models.ProviderClaude, "sorry, I cannot help")
	g := ai.NewGateway([]models.AIProvider{p})

	res, err := g.Classify(context.Background(), invoiceRequest())
	assert.Equal(t, ai.DefaultResult(), res)

	var exhausted *ai.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Failures, 1)
	assert.Equal(t, models.ProviderClaude, exhausted.Failures[0].Provider)
	assert.ErrorIs(t, err, ai.ErrNoJSONObject)
}

func TestClassify_InvalidEnumTriesNext(t *testing.T) {
	bad := mock.NewStaticProvider(models.ProviderClaude, jsonWith(t, `"financial"`, `"accounting"`))
	good := mock.NewMockProvider(models.ProviderGPT)
	g := ai.NewGateway([]models.AIProvider{bad, good})

	res, err := g.Classify(context.Background(), invoiceRequest())
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGPT, res.Provider)
	assert.Equal(t, models.CategorySalesInquiry, res.Category)
}

func TestClassify_TimeoutTriesNext(t *testing.T) {
	slow := mock.NewTimeoutProvider(models.ProviderClaude)
	fast := mock.NewMockProvider(models.ProviderGPT)
	g := ai.NewGateway([]models.AIProvider{slow, fast}, ai.WithTimeout(20*time.Millisecond))

	res, err := g.Classify(context.Background(), invoiceRequest())
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGPT, res.Provider)
}

func TestClassify_AllFail(t *testing.T) {
	g := ai.NewGateway([]models.AIProvider{
		mock.NewFailingProvider(models.ProviderClaude, errors.New("500")),
		mock.NewStaticProvider(models.ProviderGPT, "{not json"),
		mock.NewTimeoutProvider(models.ProviderGemini),
	}, ai.WithTimeout(20*time.Millisecond))

	res, err := g.Classify(context.Background(), invoiceRequest())
	assert.Equal(t, ai.DefaultResult(), res)

	var exhausted *ai.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Failures, 3)
	assert.Equal(t, models.ProviderClaude, exhausted.Failures[0].Provider)
	assert.Equal(t, models.ProviderGPT, exhausted.Failures[1].Provider)
	assert.Equal(t, models.ProviderGemini, exhausted.Failures[2].Provider)
	assert.ErrorIs(t, err, ai.ErrInferenceTimeout)
}

func TestClassify_ProviderPanicIsContained(t *testing.T) {
	panicky := &mock.MockProvider{
		Name_: models.ProviderClaude,
		CompleteFunc: func(context.Context, models.CompletionRequest) (string, error) {
			panic("boom")
		},
	}
	g := ai.NewGateway([]models.AIProvider{panicky, mock.NewMockProvider(models.ProviderGPT)})

	res, err := g.Classify(context.Background(), invoiceRequest())
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGPT, res.Provider)
}

func TestClassify_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &mock.MockProvider{
		Name_: models.ProviderClaude,
		CompleteFunc: func(context.Context, models.CompletionRequest) (string, error) {
			cancel()
			return "", context.Canceled
		},
	}
	second := mock.NewMockProvider(models.ProviderGPT)
	g := ai.NewGateway([]models.AIProvider{first, second})

	res, err := g.Classify(ctx, invoiceRequest())
	assert.Equal(t, ai.DefaultResult(), res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, second.Calls())
}

func TestClassify_PromptCarriesEmail(t *testing.T) {
	var got models.CompletionRequest
	p := &mock.MockProvider{
		Name_: models.ProviderClaude,
		CompleteFunc: func(_ context.Context, req models.CompletionRequest) (string, error) {
			got = req
			return invoiceJSON, nil
		},
	}
	g := ai.NewGateway([]models.AIProvider{p})

	_, err := g.Classify(context.Background(), invoiceRequest())
	require.NoError(t, err)
	assert.Contains(t, got.Prompt, "billing@nauticaparts.example")
	assert.Contains(t, got.Prompt, "Invoice overdue")
	assert.Contains(t, got.Prompt, "€25,000 due Feb 28")
	assert.True(t, got.JSONMode)
	assert.Equal(t, 2000, got.MaxTokens)
}

func TestClassifyWithConsensus(t *testing.T) {
	claude := mock.NewStaticProvider(models.ProviderClaude, jsonWith(t,
		`"priority": "high"`, `"priority": "low"`,
		`"requires_response": true`, `"requires_response": false`,
		`"confidence_score": 0.88`, `"confidence_score": 0.6`,
	))
	gpt := mock.NewStaticProvider(models.ProviderGPT, jsonWith(t,
		`"priority": "high"`, `"priority": "critical"`,
		`"requires_response": true`, `"requires_response": false`,
		`"confidence_score": 0.88`, `"confidence_score": 0.9`,
	))
	gemini := mock.NewStaticProvider(models.ProviderGemini, jsonWith(t,
		`"priority": "high"`, `"priority": "medium"`,
		`"confidence_score": 0.88`, `"confidence_score": 0.3`,
	))
	g := ai.NewGateway([]models.AIProvider{gemini, claude, gpt})

	res, err := g.ClassifyWithConsensus(context.Background(), invoiceRequest())
	require.NoError(t, err)

	require.Len(t, res.Individual, 3)
	assert.Equal(t, models.ProviderClaude, res.Individual[0].Provider)
	assert.Equal(t, models.ProviderGPT, res.Individual[1].Provider)
	assert.Equal(t, models.ProviderGemini, res.Individual[2].Provider)

	m := res.Merged
	assert.Equal(t, models.ProviderConsensus, m.Provider)
	assert.Equal(t, models.PriorityCritical, m.Priority)
	assert.True(t, m.RequiresResponse)
	assert.InDelta(t, (0.6+0.9+0.3)/3, m.ConfidenceScore, 1e-9)
	assert.Equal(t, models.CategoryFinancial, m.Category)
	assert.Len(t, m.ExtractedNumbers, 1)
	assert.Len(t, m.ExtractedDates, 1)
	assert.Len(t, m.Entities, 1)
	assert.Equal(t, []string{"Forward to accounting", "Confirm payment date"}, m.SuggestedActions)
}

func TestClassifyWithConsensus_PartialFailure(t *testing.T) {
	g := ai.NewGateway([]models.AIProvider{
		mock.NewFailingProvider(models.ProviderClaude, errors.New("down")),
		mock.NewStaticProvider(models.ProviderGPT, invoiceJSON),
	})

	res, err := g.ClassifyWithConsensus(context.Background(), invoiceRequest())
	require.NoError(t, err)
	require.Len(t, res.Individual, 1)
	assert.Equal(t, models.ProviderGPT, res.Individual[0].Provider)
	assert.Equal(t, models.ProviderConsensus, res.Merged.Provider)
	assert.Equal(t, models.CategoryFinancial, res.Merged.Category)
}

func TestClassifyWithConsensus_RunsConcurrently(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(3)
	barrier := func(name models.ProviderID) *mock.MockProvider {
		return &mock.MockProvider{
			Name_: name,
			CompleteFunc: func(ctx context.Context, _ models.CompletionRequest) (string, error) {
				wg.Done()
				done := make(chan struct{})
				go func() { wg.Wait(); close(done) }()
				select {
				case <-done:
					return invoiceJSON, nil
				case <-ctx.Done():
					return "", ctx.Err()
				}
			},
		}
	}
	g := ai.NewGateway([]models.AIProvider{
		barrier(models.ProviderClaude), barrier(models.ProviderGPT), barrier(models.ProviderGemini),
	}, ai.WithTimeout(2*time.Second))

	res, err := g.ClassifyWithConsensus(context.Background(), invoiceRequest())
	require.NoError(t, err)
	assert.Len(t, res.Individual, 3)
}

func TestClassifyWithConsensus_FailureDoesNotCancelSiblings(t *testing.T) {
	slowOK := &mock.MockProvider{
		Name_: models.ProviderGPT,
		CompleteFunc: func(ctx context.Context, _ models.CompletionRequest) (string, error) {
			select {
			case <-time.After(30 * time.Millisecond):
				return invoiceJSON, nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	}
	g := ai.NewGateway([]models.AIProvider{
		mock.NewFailingProvider(models.ProviderClaude, errors.New("immediate failure")),
		slowOK,
	})

	res, err := g.ClassifyWithConsensus(context.Background(), invoiceRequest())
	require.NoError(t, err)
	require.Len(t, res.Individual, 1)
	assert.Equal(t, models.ProviderGPT, res.Individual[0].Provider)
}

func TestClassifyWithConsensus_NoProviders(t *testing.T) {
	g := ai.NewGateway(nil)

	res, err := g.ClassifyWithConsensus(context.Background(), invoiceRequest())
	assert.ErrorIs(t, err, ai.ErrNoProvidersConfigured)
	assert.Equal(t, ai.DefaultResult(), res.Merged)
	assert.Equal(t, []models.ClassificationResult{ai.DefaultResult()}, res.Individual)
}

func TestClassifyWithConsensus_AllFail(t *testing.T) {
	g := ai.NewGateway([]models.AIProvider{
		mock.NewStaticProvider(models.ProviderClaude, "sorry, I cannot help"),
		mock.NewFailingProvider(models.ProviderGemini, errors.New("quota")),
	})

	res, err := g.ClassifyWithConsensus(context.Background(), invoiceRequest())
	var exhausted *ai.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, exhausted.Failures, 2)
	assert.Equal(t, ai.DefaultResult(), res.Merged)
	assert.Equal(t, []models.ClassificationResult{ai.DefaultResult()}, res.Individual)
}

func TestAsk(t *testing.T) {
	var prompt string
	gpt := &mock.MockProvider{
		Name_: models.ProviderGPT,
		CompleteFunc: func(_ context.Context, req models.CompletionRequest) (string, error) {
			prompt = req.Prompt
			assert.False(t, req.JSONMode)
			return "  The invoice is EUR 25,000.\n", nil
		},
	}
	g := ai.NewGateway([]models.AIProvider{gpt})

	classification, err := ai.ParseClassification(invoiceJSON)
	require.NoError(t, err)
	email := models.EmailContext{
		Sender:         "billing@nauticaparts.example",
		Subject:        "Invoice overdue",
		Body:           "our invoice INV-2231 of €25,000 due Feb 28 is still open.",
		Classification: &classification,
	}

	answer := g.Ask(context.Background(), "How much is owed?", email, models.ProviderGPT)
	assert.Equal(t, "The invoice is EUR 25,000.", answer)
	assert.Contains(t, prompt, "How much is owed?")
	assert.Contains(t, prompt, "INV-2231")
	assert.Contains(t, prompt, "Category: financial")
}

func TestAsk_UnconfiguredFallsBackInPriorityOrder(t *testing.T) {
	gpt := mock.NewStaticProvider(models.ProviderGPT, "from gpt")
	gemini := mock.NewStaticProvider(models.ProviderGemini, "from gemini")
	g := ai.NewGateway([]models.AIProvider{gemini, gpt})

	answer := g.Ask(context.Background(), "q", models.EmailContext{}, models.ProviderClaude)
	assert.Equal(t, "from gpt", answer)
	assert.Equal(t, 0, gemini.Calls())
}

func TestAsk_NoChoiceUsesPrimary(t *testing.T) {
	claude := mock.NewFailingProvider(models.ProviderClaude, errors.New("overloaded"))
	gpt := mock.NewStaticProvider(models.ProviderGPT, "from gpt")
	g := ai.NewGateway([]models.AIProvider{claude, gpt}, ai.WithPrimary(models.ProviderGPT))

	answer := g.Ask(context.Background(), "q", models.EmailContext{}, "")
	assert.Equal(t, "from gpt", answer)
	assert.Equal(t, 0, claude.Calls())
}

func TestAsk_NoChoiceUnconfiguredPrimaryUsesPriorityOrder(t *testing.T) {
	gemini := mock.NewStaticProvider(models.ProviderGemini, "from gemini")
	gpt := mock.NewStaticProvider(models.ProviderGPT, "from gpt")
	g := ai.NewGateway([]models.AIProvider{gemini, gpt}, ai.WithPrimary(models.ProviderClaude))

	assert.Equal(t, "from gpt", g.Ask(context.Background(), "q", models.EmailContext{}, ""))
	assert.Equal(t, 0, gemini.Calls())
}

func TestAsk_NoProviders(t *testing.T) {
	g := ai.NewGateway(nil)
	assert.Equal(t, ai.NoProviderAnswer, g.Ask(context.Background(), "q", models.EmailContext{}, models.ProviderClaude))
}

func TestAsk_ProviderErrorReturnsFixedMessage(t *testing.T) {
	claude := mock.NewFailingProvider(models.ProviderClaude, errors.New("boom"))
	gpt := mock.NewStaticProvider(models.ProviderGPT, "should not be asked")
	g := ai.NewGateway([]models.AIProvider{claude, gpt})

	answer := g.Ask(context.Background(), "q", models.EmailContext{}, models.ProviderClaude)
	assert.Equal(t, ai.ErrorAnswer, answer)
	assert.Equal(t, 0, gpt.Calls())
}

func TestNewGateway_Order(t *testing.T) {
	custom := mock.NewMockProvider("local")
	g := ai.NewGateway([]models.AIProvider{
		custom,
		mock.NewMockProvider(models.ProviderGemini),
		mock.NewMockProvider(models.ProviderClaude),
	})
	assert.Equal(t, []models.ProviderID{models.ProviderClaude, models.ProviderGemini, "local"}, g.Configured())
}
