package ai

import (
	"encoding/json"
	"fmt"

	"github.com/dromeas/triage/pkg/models"
)

// ExtractJSONObject returns the first balanced {...} span in text. Braces
// inside JSON string literals do not count toward the balance.
func ExtractJSONObject(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if start < 0 {
			if ch == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseClassification turns raw provider output into a validated result.
// Enum fields outside their closed sets make the whole response invalid.
func ParseClassification(raw string) (models.ClassificationResult, error) {
	span, ok := ExtractJSONObject(raw)
	if !ok {
		return models.ClassificationResult{}, ErrNoJSONObject
	}

	var res models.ClassificationResult
	if err := json.Unmarshal([]byte(span), &res); err != nil {
		return models.ClassificationResult{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if err := validate(res); err != nil {
		return models.ClassificationResult{}, err
	}

	normalize(&res)
	return res, nil
}

func validate(res models.ClassificationResult) error {
	switch {
	case !res.Category.Valid():
		return fmt.Errorf("%w: category %q", ErrInvalidResponse, res.Category)
	case !res.Priority.Valid():
		return fmt.Errorf("%w: priority %q", ErrInvalidResponse, res.Priority)
	case !res.Urgency.Valid():
		return fmt.Errorf("%w: urgency %q", ErrInvalidResponse, res.Urgency)
	case !res.Sentiment.Valid():
		return fmt.Errorf("%w: sentiment %q", ErrInvalidResponse, res.Sentiment)
	}
	return nil
}

// normalize clamps confidences to [0, 1] and replaces nil lists with empty ones.
func normalize(res *models.ClassificationResult) {
	res.ConfidenceScore = clamp01(res.ConfidenceScore)
	for i := range res.ExtractedNumbers {
		res.ExtractedNumbers[i].Confidence = clamp01(res.ExtractedNumbers[i].Confidence)
	}
	if res.ExtractedNumbers == nil {
		res.ExtractedNumbers = []models.ExtractedNumber{}
	}
	if res.ExtractedDates == nil {
		res.ExtractedDates = []models.ExtractedDate{}
	}
	if res.SuggestedActions == nil {
		res.SuggestedActions = []string{}
	}
	if res.Entities == nil {
		res.Entities = []models.Entity{}
	}
	// Provider is stamped by the gateway, never trusted from the model.
	res.Provider = ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
