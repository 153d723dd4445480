// Package models contains shared data models used across the triage codebase.
package models

import "context"

// AIProvider is the capability every LLM integration implements: send a fully
// rendered prompt, get back the raw text the model produced.
// Callers never reach a provider SDK directly; they are handed this interface.
type AIProvider interface {
	// Complete sends the prompt and returns the model's raw text output.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Name returns the provider identifier (e.g., "claude", "gpt").
	Name() ProviderID
}

// CompletionRequest is the input to a single provider round trip.
type CompletionRequest struct {
	Prompt    string
	MaxTokens int
	// JSONMode asks the provider to constrain output to a JSON object where the
	// SDK supports it. Providers without such a toggle ignore it.
	JSONMode bool
}
