// Package handler holds the HTTP handlers of the triage API. Each handler
// depends on a small interface so it can be tested without infrastructure.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dromeas/triage/internal/ai"
	mw "github.com/dromeas/triage/internal/api/middleware"
	"github.com/dromeas/triage/internal/api/response"
	"github.com/dromeas/triage/pkg/models"
)

const (
	defaultPageSize  = 20
	maxPageSize      = 100
	maxQuestionBytes = 2000
)

func tenantFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := mw.GetTenantID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
	}
	return id, ok
}

func pathUUID(w http.ResponseWriter, r *http.Request, param, code, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		response.Error(w, http.StatusBadRequest, code, "Invalid "+label+" format", nil)
		return uuid.Nil, false
	}
	return id, true
}

// parseProvider accepts an empty name or one of the three provider names.
func parseProvider(w http.ResponseWriter, name string) (models.ProviderID, bool) {
	p := models.ProviderID(name)
	if p == "" || p.Valid() {
		return p, true
	}
	response.Error(w, http.StatusBadRequest, "INVALID_PROVIDER",
		"provider must be one of claude, gpt, gemini", nil)
	return "", false
}

func parsePage(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// writeServiceError maps triage service errors onto API error codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ai.ErrInvalidEmail), errors.Is(err, ai.ErrInvalidQuestion):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, ai.ErrEmailNotFound):
		response.Error(w, http.StatusNotFound, "EMAIL_NOT_FOUND", "Email not found", nil)
	case errors.Is(err, ai.ErrProviderUnavailable):
		response.Error(w, http.StatusBadGateway, "AI_PROVIDER_UNAVAILABLE",
			"The AI provider is not available", nil)
	case errors.Is(err, ai.ErrInferenceTimeout):
		response.Error(w, http.StatusGatewayTimeout, "AI_INFERENCE_TIMEOUT",
			"AI classification took too long and was cancelled", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
