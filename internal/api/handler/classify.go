package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dromeas/triage/internal/api/response"
	"github.com/dromeas/triage/pkg/models"
)

// DegradedHeader is set when the body carries the default classification
// because no provider produced a usable one.
const DegradedHeader = "X-Triage-Degraded"

// Classifier is what the classify, consensus and ask handlers need.
type Classifier interface {
	Classify(ctx context.Context, req models.ClassificationRequest) (models.ClassificationResult, error)
	ClassifyWithConsensus(ctx context.Context, req models.ClassificationRequest) (models.ConsensusResult, error)
	Ask(ctx context.Context, question string, email models.EmailContext, provider models.ProviderID) string
}

type classifyRequest struct {
	Sender   string `json:"sender"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Provider string `json:"provider"`
}

func decodeClassifyRequest(w http.ResponseWriter, r *http.Request) (models.ClassificationRequest, bool) {
	var req classifyRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return models.ClassificationRequest{}, false
	}
	if strings.TrimSpace(req.Subject) == "" && strings.TrimSpace(req.Body) == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "subject or body is required",
			map[string][]string{"subject": {"subject or body is required"}})
		return models.ClassificationRequest{}, false
	}
	provider, ok := parseProvider(w, req.Provider)
	if !ok {
		return models.ClassificationRequest{}, false
	}
	return models.ClassificationRequest{
		Sender:            req.Sender,
		Subject:           req.Subject,
		Body:              req.Body,
		PreferredProvider: provider,
	}, true
}

// NewClassifyHandler returns an http.HandlerFunc for POST /api/v1/classify.
// It always answers 200 with a well-formed classification.
func NewClassifyHandler(c Classifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := tenantFrom(w, r); !ok {
			return
		}
		req, ok := decodeClassifyRequest(w, r)
		if !ok {
			return
		}

		res, err := c.Classify(r.Context(), req)
		if err != nil {
			slog.Warn("classify returned default result", "error", err)
			w.Header().Set(DegradedHeader, "true")
		}
		response.JSON(w, res)
	}
}

// NewConsensusHandler returns an http.HandlerFunc for POST /api/v1/classify/consensus.
func NewConsensusHandler(c Classifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := tenantFrom(w, r); !ok {
			return
		}
		req, ok := decodeClassifyRequest(w, r)
		if !ok {
			return
		}

		res, err := c.ClassifyWithConsensus(r.Context(), req)
		if err != nil {
			slog.Warn("consensus returned default result", "error", err)
			w.Header().Set(DegradedHeader, "true")
		}
		response.JSON(w, res)
	}
}

type askRequest struct {
	Question string              `json:"question"`
	Provider string              `json:"provider"`
	Email    models.EmailContext `json:"email"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// NewAskHandler returns an http.HandlerFunc for POST /api/v1/ask, which
// answers a question about an email given inline.
func NewAskHandler(c Classifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := tenantFrom(w, r); !ok {
			return
		}

		var req askRequest
		if err := response.Decode(w, r, &req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		question := strings.TrimSpace(req.Question)
		if question == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "question is required", nil)
			return
		}
		if len(question) > maxQuestionBytes {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "question is too long", nil)
			return
		}
		provider, ok := parseProvider(w, req.Provider)
		if !ok {
			return
		}

		response.JSON(w, askResponse{Answer: c.Ask(r.Context(), question, req.Email, provider)})
	}
}
