package mock

import (
	"context"
	"sync/atomic"

	"github.com/dromeas/triage/internal/ai"
	"github.com/dromeas/triage/pkg/models"
)

// MockProvider satisfies models.AIProvider for testing.
type MockProvider struct {
	Name_        models.ProviderID
	CompleteFunc func(ctx context.Context, req models.CompletionRequest) (string, error)

	calls atomic.Int64
}

func (m *MockProvider) Name() models.ProviderID { return m.Name_ }

func (m *MockProvider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	m.calls.Add(1)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "", nil
}

// Calls reports how many times Complete was invoked.
func (m *MockProvider) Calls() int { return int(m.calls.Load()) }

// ValidClassificationJSON is a well-formed response used by NewMockProvider.
const ValidClassificationJSON = `{
  "category": "sales_inquiry",
  "priority": "high",
  "urgency": "today",
  "summary": "Prospective buyer asks for a D33 quote with delivery before summer.",
  "extracted_numbers": [{"value": 350000, "currency": "EUR", "context": "budget", "type": "price", "confidence": 0.8}],
  "extracted_dates": [{"date": "2026-05-01", "context": "requested delivery", "type": "delivery"}],
  "suggested_actions": ["Send D33 quote", "Propose sea trial"],
  "entities": [{"name": "D33", "type": "boat_model", "context": "requested model"}],
  "sentiment": "positive",
  "requires_response": true,
  "confidence_score": 0.9
}`

// NewMockProvider returns a MockProvider named name that answers every prompt
// with ValidClassificationJSON.
func NewMockProvider(name models.ProviderID) *MockProvider {
	return NewStaticProvider(name, ValidClassificationJSON)
}

// NewStaticProvider returns a MockProvider that always answers with text.
func NewStaticProvider(name models.ProviderID, text string) *MockProvider {
	return &MockProvider{
		Name_: name,
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			return text, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(name models.ProviderID, err error) *MockProvider {
	return &MockProvider{
		Name_: name,
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider(name models.ProviderID) *MockProvider {
	return &MockProvider{
		Name_: name,
		CompleteFunc: func(ctx context.Context, _ models.CompletionRequest) (string, error) {
			<-ctx.Done()
			return "", ai.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
