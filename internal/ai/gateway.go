package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dromeas/triage/internal/ingest"
	"github.com/dromeas/triage/pkg/models"
)

const (
	// NoProviderAnswer is what Ask returns when no provider is configured.
	NoProviderAnswer = "No AI provider is configured. Set ANTHROPIC_API_KEY, OPENAI_API_KEY or GEMINI_API_KEY to enable the assistant."
	// ErrorAnswer is what Ask returns when the provider call fails.
	ErrorAnswer = "Sorry, there was an error processing your question. Please try again."

	defaultSummary = "Unable to classify this email automatically."
	defaultAction  = "Review manually"
)

// DefaultResult is the zero-confidence classification returned when no
// provider produced a usable answer.
func DefaultResult() models.ClassificationResult {
	return models.ClassificationResult{
		Category:         models.CategoryOther,
		Priority:         models.PriorityMedium,
		Urgency:          models.UrgencyThisWeek,
		Summary:          defaultSummary,
		ExtractedNumbers: []models.ExtractedNumber{},
		ExtractedDates:   []models.ExtractedDate{},
		SuggestedActions: []string{defaultAction},
		Entities:         []models.Entity{},
		Sentiment:        models.SentimentNeutral,
		RequiresResponse: false,
		ConfidenceScore:  0,
	}
}

// Gateway classifies emails across a set of configured providers.
// It is safe for concurrent use; it holds no mutable state after construction.
type Gateway struct {
	providers map[models.ProviderID]models.AIProvider
	order     []models.ProviderID
	primary   models.ProviderID
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithPrimary sets the provider tried first when a request names none.
func WithPrimary(p models.ProviderID) Option {
	return func(g *Gateway) { g.primary = p }
}

// WithTimeout bounds every individual provider call.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// NewGateway builds a gateway over the given providers. Only providers passed
// here count as configured. Fallback order is claude, gpt, gemini, followed by
// any other providers in the order given.
func NewGateway(providers []models.AIProvider, opts ...Option) *Gateway {
	g := &Gateway{
		providers: make(map[models.ProviderID]models.AIProvider, len(providers)),
		primary:   models.ProviderClaude,
		timeout:   60 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}

	var extra []models.ProviderID
	for _, p := range providers {
		if p == nil {
			continue
		}
		name := p.Name()
		if _, dup := g.providers[name]; dup {
			g.logger.Warn("duplicate ai provider, keeping the last one", "provider", name)
		} else if !name.Valid() {
			extra = append(extra, name)
		}
		g.providers[name] = p
	}
	for _, id := range models.ProviderOrder {
		if _, ok := g.providers[id]; ok {
			g.order = append(g.order, id)
		}
	}
	g.order = append(g.order, extra...)
	return g
}

// Configured lists configured providers in fallback order.
func (g *Gateway) Configured() []models.ProviderID {
	return append([]models.ProviderID(nil), g.order...)
}

// IsConfigured reports whether id can be called.
func (g *Gateway) IsConfigured(id models.ProviderID) bool {
	_, ok := g.providers[id]
	return ok
}

// Classify tries the preferred provider, then every other configured provider,
// one at a time, and returns the first valid classification stamped with the
// provider that produced it.
//
// The returned result is always well-formed. When no provider succeeded it is
// DefaultResult and the error says why: ErrNoProvidersConfigured, or an
// *ExhaustedError listing each provider's failure.
func (g *Gateway) Classify(ctx context.Context, req models.ClassificationRequest) (models.ClassificationResult, error) {
	candidates := g.candidates(req.PreferredProvider)
	if len(candidates) == 0 {
		g.logger.Warn("no ai provider configured, returning default classification")
		return DefaultResult(), ErrNoProvidersConfigured
	}

	exhausted := &ExhaustedError{}
	for _, id := range candidates {
		res, err := g.classifyWith(ctx, id, req)
		if err == nil {
			return res, nil
		}
		g.logger.Warn("ai provider failed, trying next", "provider", id, "error", err)
		exhausted.Failures = append(exhausted.Failures, &ProviderError{Provider: id, Err: err})
		if ctx.Err() != nil {
			break
		}
	}

	g.logger.Error("all ai providers failed, returning default classification",
		"attempted", len(exhausted.Failures))
	return DefaultResult(), exhausted
}

// ClassifyWithConsensus asks every configured provider at once and merges the
// successful answers. A failing or slow provider never cancels its siblings.
func (g *Gateway) ClassifyWithConsensus(ctx context.Context, req models.ClassificationRequest) (models.ConsensusResult, error) {
	ids := g.Configured()
	if len(ids) == 0 {
		g.logger.Warn("no ai provider configured, returning default classification")
		def := DefaultResult()
		return models.ConsensusResult{Merged: def, Individual: []models.ClassificationResult{def}}, ErrNoProvidersConfigured
	}

	results := make([]*models.ClassificationResult, len(ids))
	failures := make([]*ProviderError, len(ids))

	var eg errgroup.Group
	for i, id := range ids {
		eg.Go(func() error {
			res, err := g.classifyWith(ctx, id, req)
			if err != nil {
				g.logger.Warn("ai provider failed during consensus", "provider", id, "error", err)
				failures[i] = &ProviderError{Provider: id, Err: err}
				return nil
			}
			results[i] = &res
			return nil
		})
	}
	_ = eg.Wait()

	var ok []models.ClassificationResult
	exhausted := &ExhaustedError{}
	for i := range ids {
		if results[i] != nil {
			ok = append(ok, *results[i])
		} else if failures[i] != nil {
			exhausted.Failures = append(exhausted.Failures, failures[i])
		}
	}

	if len(ok) == 0 {
		g.logger.Error("all ai providers failed during consensus, returning default classification")
		def := DefaultResult()
		return models.ConsensusResult{Merged: def, Individual: []models.ClassificationResult{def}}, exhausted
	}

	return models.ConsensusResult{Merged: Merge(ok), Individual: ok}, nil
}

// Ask answers a free-text question about an email using exactly one provider.
// No choice means the primary provider. An unconfigured choice falls back to
// the first configured provider in priority order. Ask never fails: problems
// come back as fixed messages.
func (g *Gateway) Ask(ctx context.Context, question string, email models.EmailContext, provider models.ProviderID) string {
	id, ok := g.resolveAskProvider(provider)
	if !ok {
		return NoProviderAnswer
	}

	answer, err := g.complete(ctx, id, models.CompletionRequest{
		Prompt:    RenderAskPrompt(question, email),
		MaxTokens: askMaxTokens,
	})
	if err != nil {
		g.logger.Error("ai question failed", "provider", id, "error", err)
		return ErrorAnswer
	}
	return strings.TrimSpace(answer)
}

func (g *Gateway) resolveAskProvider(p models.ProviderID) (models.ProviderID, bool) {
	if p == "" {
		p = g.primary
	}
	if g.IsConfigured(p) {
		return p, true
	}
	if len(g.order) == 0 {
		return "", false
	}
	return g.order[0], true
}

// candidates returns [preferred] followed by every other configured provider.
// An unconfigured preferred provider is not a candidate.
func (g *Gateway) candidates(preferred models.ProviderID) []models.ProviderID {
	if preferred == "" {
		preferred = g.primary
	}
	out := make([]models.ProviderID, 0, len(g.order))
	if g.IsConfigured(preferred) {
		out = append(out, preferred)
	}
	for _, id := range g.order {
		if id != preferred {
			out = append(out, id)
		}
	}
	return out
}

// classifyWith is the per-provider request/parse step.
func (g *Gateway) classifyWith(ctx context.Context, id models.ProviderID, req models.ClassificationRequest) (models.ClassificationResult, error) {
	raw, err := g.complete(ctx, id, models.CompletionRequest{
		Prompt:    RenderClassificationPrompt(req),
		MaxTokens: classifyMaxTokens,
		JSONMode:  true,
	})
	if err != nil {
		return models.ClassificationResult{}, err
	}

	res, err := ParseClassification(raw)
	if err != nil {
		g.logger.Debug("unparseable ai response", "provider", id, "raw", truncateForLog(raw))
		return models.ClassificationResult{}, err
	}
	res.Provider = id
	return res, nil
}

// complete performs one provider round trip under the per-call timeout and
// turns provider panics into errors.
func (g *Gateway) complete(ctx context.Context, id models.ProviderID, req models.CompletionRequest) (text string, err error) {
	p, ok := g.providers[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrProviderUnavailable, id)
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()

	text, err = p.Complete(callCtx, req)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w after %s: %v", ErrInferenceTimeout, g.timeout, err)
		}
		return "", err
	}
	return text, nil
}

func truncateForLog(s string) string {
	if len(s) <= 500 {
		return s
	}
	return ingest.TruncateUTF8(s, 500) + "..."
}
