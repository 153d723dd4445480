package ai

import (
	"fmt"
	"strings"

	"github.com/dromeas/triage/internal/ingest"
	"github.com/dromeas/triage/pkg/models"
)

// MaxPromptBodyBytes bounds how much of an email body is sent to a provider.
const MaxPromptBodyBytes = 4000

const (
	classifyMaxTokens = 2000
	askMaxTokens      = 1500
)

var classificationTemplate = `You are the email triage assistant for Dromeas Yachts, a small yacht manufacturer.
Classify the email below and extract structured information from it.

Return ONLY a JSON object. No markdown, no code fences, no prose before or after it.
The object must have exactly this shape:

{
  "category": one of [` + quoted(models.Categories) + `],
  "priority": one of [` + quoted(models.PrioritySeverity) + `],
  "urgency": one of [` + quoted(models.UrgencyImmediacy) + `],
  "summary": "one or two sentences describing the email",
  "extracted_numbers": [{"value": 25000, "currency": "EUR", "context": "what the number refers to", "type": "price|deposit|invoice|quantity|measurement|other", "confidence": 0.0-1.0}],
  "extracted_dates": [{"date": "YYYY-MM-DD", "context": "what happens on this date", "type": "deadline|delivery|meeting|payment|other"}],
  "suggested_actions": ["short imperative action"],
  "entities": [{"name": "...", "type": "person|company|boat_model|location|product", "context": "..."}],
  "sentiment": one of [` + quoted(models.Sentiments) + `],
  "requires_response": true or false,
  "confidence_score": 0.0-1.0
}

Email:
From: {{sender}}
Subject: {{subject}}

{{body}}`

var askTemplate = `You are the operations assistant for Dromeas Yachts, a small yacht manufacturer.
Answer the user's question using the email below. Be concise and concrete.
If the email does not contain the answer, say so.

Email:
From: {{sender}}
Subject: {{subject}}

{{body}}
{{classification}}
Question: {{question}}`

// RenderClassificationPrompt substitutes the request into the classification
// template. The body is truncated to MaxPromptBodyBytes.
func RenderClassificationPrompt(req models.ClassificationRequest) string {
	r := strings.NewReplacer(
		"{{sender}}", req.Sender,
		"{{subject}}", req.Subject,
		"{{body}}", ingest.TruncateUTF8(req.Body, MaxPromptBodyBytes),
	)
	return r.Replace(classificationTemplate)
}

// RenderAskPrompt embeds the full email context and the question.
func RenderAskPrompt(question string, email models.EmailContext) string {
	r := strings.NewReplacer(
		"{{sender}}", email.Sender,
		"{{subject}}", email.Subject,
		"{{body}}", email.Body,
		"{{classification}}", describeClassification(email.Classification),
		"{{question}}", question,
	)
	return r.Replace(askTemplate)
}

func describeClassification(c *models.ClassificationResult) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nPrevious analysis:\n")
	fmt.Fprintf(&b, "Category: %s, priority: %s, urgency: %s, sentiment: %s\n",
		c.Category, c.Priority, c.Urgency, c.Sentiment)
	if c.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", c.Summary)
	}
	for _, n := range c.ExtractedNumbers {
		fmt.Fprintf(&b, "Amount: %g %s (%s)\n", n.Value, n.Currency, n.Context)
	}
	for _, d := range c.ExtractedDates {
		fmt.Fprintf(&b, "Date: %s (%s)\n", d.Date, d.Context)
	}
	return b.String()
}

func quoted[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = `"` + string(v) + `"`
	}
	return strings.Join(parts, ", ")
}
