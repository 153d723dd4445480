package ai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dromeas/triage/pkg/models"
)

var (
	ErrProviderUnavailable   = errors.New("ai provider unavailable")
	ErrInferenceTimeout      = errors.New("ai inference timeout")
	ErrInvalidResponse       = errors.New("ai provider returned invalid response")
	ErrNoJSONObject          = errors.New("no JSON object in provider response")
	ErrNoProvidersConfigured = errors.New("no ai provider configured")
	ErrEmailNotFound         = errors.New("email not found")
)

// ProviderError records why one provider abstained.
type ProviderError struct {
	Provider models.ProviderID
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ExhaustedError is returned alongside the default classification when every
// configured provider was tried and none produced a usable result.
type ExhaustedError struct {
	Failures []*ProviderError
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return "all ai providers failed: " + strings.Join(parts, "; ")
}

func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
