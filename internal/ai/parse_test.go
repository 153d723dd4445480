package ai_test

import (
	"testing"

	"github.com/dromeas/triage/internal/ai"
	"github.com/dromeas/triage/internal/ai/mock"
	"github.com/dromeas/triage/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"markdown fence", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"leading prose", `Here you go: {"a":{"b":2}} hope that helps`, `{"a":{"b":2}}`, true},
		{"brace inside string", `{"summary":"use } and { freely","x":1}`, `{"summary":"use } and { freely","x":1}`, true},
		{"escaped quote inside string", `{"s":"say \"}\" now"} trailing {"b":2}`, `{"s":"say \"}\" now"}`, true},
		{"first of two objects", `{"a":1} {"b":2}`, `{"a":1}`, true},
		{"no object", "sorry, I cannot help", "", false},
		{"unbalanced", `{"a":{"b":1}`, "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ai.ExtractJSONObject(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseClassification_Valid(t *testing.T) {
	res, err := ai.ParseClassification("```json\n" + mock.ValidClassificationJSON + "\n```")
	require.NoError(t, err)
	assert.Equal(t, models.CategorySalesInquiry, res.Category)
	assert.Equal(t, models.PriorityHigh, res.Priority)
	assert.Equal(t, models.UrgencyToday, res.Urgency)
	assert.Equal(t, models.SentimentPositive, res.Sentiment)
	assert.True(t, res.RequiresResponse)
	assert.InDelta(t, 0.9, res.ConfidenceScore, 1e-9)
	require.Len(t, res.ExtractedNumbers, 1)
	assert.Equal(t, 350000.0, res.ExtractedNumbers[0].Value)
	assert.Equal(t, models.ProviderID(""), res.Provider)
}

func TestParseClassification_NoJSON(t *testing.T) {
	_, err := ai.ParseClassification("sorry, I cannot help")
	assert.ErrorIs(t, err, ai.ErrNoJSONObject)
}

func TestParseClassification_BadJSON(t *testing.T) {
	_, err := ai.ParseClassification(`{"category": financial}`)
	assert.ErrorIs(t, err, ai.ErrInvalidResponse)
}

func TestParseClassification_InvalidEnums(t *testing.T) {
	base := `{"category":"financial","priority":"high","urgency":"today","sentiment":"neutral"}`
	cases := map[string]string{
		"category":  `{"category":"spam","priority":"high","urgency":"today","sentiment":"neutral"}`,
		"priority":  `{"category":"financial","priority":"urgent","urgency":"today","sentiment":"neutral"}`,
		"urgency":   `{"category":"financial","priority":"high","urgency":"asap","sentiment":"neutral"}`,
		"sentiment": `{"category":"financial","priority":"high","urgency":"today","sentiment":"angry"}`,
		"missing":   `{"category":"financial","priority":"high","urgency":"today"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ai.ParseClassification(raw)
			assert.ErrorIs(t, err, ai.ErrInvalidResponse)
		})
	}

	_, err := ai.ParseClassification(base)
	require.NoError(t, err)
}

func TestParseClassification_Normalizes(t *testing.T) {
	raw := `{
		"category":"supplier","priority":"low","urgency":"no_rush","sentiment":"mixed",
		"confidence_score": 1.7,
		"extracted_numbers":[{"value":12,"context":"hull count","type":"quantity","confidence":-0.2}],
		"provider":"gemini"
	}`
	res, err := ai.ParseClassification(raw)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.ConfidenceScore)
	assert.Equal(t, 0.0, res.ExtractedNumbers[0].Confidence)
	assert.NotNil(t, res.ExtractedDates)
	assert.NotNil(t, res.SuggestedActions)
	assert.NotNil(t, res.Entities)
	assert.Equal(t, models.ProviderID(""), res.Provider, "provider is never taken from model output")
}
