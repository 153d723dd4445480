package handler

import (
	"errors"
	"net/http"

	"github.com/dromeas/triage/internal/api/response"
	"github.com/dromeas/triage/internal/store"
	"github.com/dromeas/triage/pkg/models"
)

type jobResponse struct {
	Job            *models.Job                 `json:"job"`
	Classification *models.EmailClassification `json:"classification,omitempty"`
}

// NewPollJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewPollJobHandler(svc TriageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFrom(w, r)
		if !ok {
			return
		}
		jobID, ok := pathUUID(w, r, "jobID", "INVALID_JOB_ID", "job ID")
		if !ok {
			return
		}

		job, rec, err := svc.JobResult(r.Context(), tenantID, jobID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load job", nil)
			return
		}
		response.JSON(w, jobResponse{Job: job, Classification: rec})
	}
}
