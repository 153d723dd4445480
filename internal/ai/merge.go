package ai

import (
	"strconv"

	"github.com/dromeas/triage/pkg/models"
)

// fieldReducer folds one field of several provider results into dst.
type fieldReducer func(dst *models.ClassificationResult, results []models.ClassificationResult)

// consensusReducers is the per-field merge table. Each entry is independent.
var consensusReducers = map[string]fieldReducer{
	"category": func(dst *models.ClassificationResult, rs []models.ClassificationResult) {
		dst.Category = plurality(pluck(rs, func(r models.ClassificationResult) models.Category { return r.Category }))
	},
	"sentiment": func(dst *models.ClassificationResult, rs []models.ClassificationResult) {
		dst.Sentiment = plurality(pluck(rs, func(r models.ClassificationResult) models.Sentiment { return r.Sentiment }))
	},
	"priority": func(dst *models.ClassificationResult, rs []models.ClassificationResult) {
		dst.Priority = mostSevere(pluck(rs, func(r models.ClassificationResult) models.Priority { return r.Priority }), models.PrioritySeverity)
	},
	"urgency": func(dst *models.ClassificationResult, rs []models.ClassificationResult) {
		dst.Urgency = mostSevere(pluck(rs, func(r models.ClassificationResult) models.Urgency { return r.Urgency }), models.UrgencyImmediacy)
	},
	"summary": func(dst *models.ClassificationResult, rs []models.ClassificationResult) {
		dst.Summary = rs[0].Summary
	},
	"extracted_numbers": func(dst *models.ClassificationResult, rs []models.ClassificationResult) {
		dst.ExtractedNumbers = unionBy(
			pluck(rs, func(r models.ClassificationResult) []models.ExtractedNumber { return r.ExtractedNumbers }),
			func(n models.ExtractedNumber) string {
				return strconv.FormatFloat(n.Value, 'g', -1, 64) + "\x00" + n.Context
			}, 0)
	},
	"extracted_dates": func(dst *models.ClassificationResult, rs []models.ClassificationResult) {
		dst.ExtractedDates = unionBy(
			pluck(rs, func(r models.ClassificationResult) []models.ExtractedDate { return r.ExtractedDates }),
			func(d models.ExtractedDate) string { return d.Date + "\x00" + d.Context }, 0)
	},
	"suggested_actions": func(dst *models.ClassificationResult, rs []models.ClassificationResult) {
		dst.SuggestedActions = unionBy(
			pluck(rs, func(r models.ClassificationResult) []string { return r.SuggestedActions }),
			func(a string) string { return a }, maxMergedActions)
	},
	"entities": func(dst *models.ClassificationResult, rs []models.ClassificationResult) {
		dst.Entities = unionBy(
			pluck(rs, func(r models.ClassificationResult) []models.Entity { return r.Entities }),
			func(e models.Entity) string { return e.Name + "\x00" + e.Type }, 0)
	},
	"requires_response": func(dst *models.ClassificationResult, rs []models.ClassificationResult) {
		for _, r := range rs {
			if r.RequiresResponse {
				dst.RequiresResponse = true
				return
			}
		}
	},
	"confidence_score": func(dst *models.ClassificationResult, rs []models.ClassificationResult) {
		var sum float64
		for _, r := range rs {
			sum += r.ConfidenceScore
		}
		dst.ConfidenceScore = sum / float64(len(rs))
	},
}

const maxMergedActions = 5

// Merge combines successful provider results field by field. With no input it
// returns the default classification.
func Merge(results []models.ClassificationResult) models.ClassificationResult {
	if len(results) == 0 {
		return DefaultResult()
	}
	var merged models.ClassificationResult
	for _, reduce := range consensusReducers {
		reduce(&merged, results)
	}
	merged.Provider = models.ProviderConsensus
	return merged
}

func pluck[T any](rs []models.ClassificationResult, f func(models.ClassificationResult) T) []T {
	out := make([]T, len(rs))
	for i, r := range rs {
		out[i] = f(r)
	}
	return out
}

// plurality returns the most frequent value; ties go to the value seen first.
func plurality[T comparable](values []T) T {
	counts := make(map[T]int, len(values))
	var best T
	bestCount := 0
	for _, v := range values {
		counts[v]++
	}
	for _, v := range values {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}

// mostSevere scans order from most to least severe and returns the first value present.
func mostSevere[T comparable](values []T, order []T) T {
	present := make(map[T]bool, len(values))
	for _, v := range values {
		present[v] = true
	}
	for _, o := range order {
		if present[o] {
			return o
		}
	}
	var zero T
	return zero
}

// unionBy concatenates lists in encounter order, dropping entries whose key was
// already seen. limit <= 0 means unbounded.
func unionBy[T any, K comparable](lists [][]T, key func(T) K, limit int) []T {
	seen := make(map[K]bool)
	out := make([]T, 0)
	for _, list := range lists {
		for _, item := range list {
			if limit > 0 && len(out) >= limit {
				return out
			}
			k := key(item)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, item)
		}
	}
	return out
}
