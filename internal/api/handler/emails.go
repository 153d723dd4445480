package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dromeas/triage/internal/ai"
	"github.com/dromeas/triage/internal/api/response"
	"github.com/dromeas/triage/internal/store"
	"github.com/dromeas/triage/pkg/models"
)

// TriageService is the persisted side of triage.
type TriageService interface {
	IngestEmail(ctx context.Context, p ai.IngestParams) (*models.Email, error)
	TriggerTriage(ctx context.Context, email *models.Email, opts ai.TriageOptions) (*models.Job, error)
	JobResult(ctx context.Context, tenantID, jobID uuid.UUID) (*models.Job, *models.EmailClassification, error)
	AskAboutEmail(ctx context.Context, tenantID, emailID uuid.UUID, question string, provider models.ProviderID) (string, error)
}

// EmailReader reads stored emails and their classifications.
type EmailReader interface {
	GetEmail(ctx context.Context, id, tenantID uuid.UUID) (*models.Email, error)
	ListEmails(ctx context.Context, filter store.EmailFilter) ([]*models.Email, int, error)
	GetLatestClassification(ctx context.Context, emailID uuid.UUID) (*models.EmailClassification, error)
}

type triageOptions struct {
	Consensus bool   `json:"consensus"`
	Provider  string `json:"provider"`
}

type ingestRequest struct {
	Sender     string `json:"sender"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	ReceivedAt string `json:"received_at"`
	Triage     bool   `json:"triage"`
	triageOptions
}

type ingestResponse struct {
	Email *models.Email `json:"email"`
	Job   *models.Job   `json:"job,omitempty"`
}

// NewIngestEmailHandler returns an http.HandlerFunc for POST /api/v1/emails.
// With "triage": true the stored email is also queued for classification.
func NewIngestEmailHandler(svc TriageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFrom(w, r)
		if !ok {
			return
		}

		var req ingestRequest
		if err := response.Decode(w, r, &req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		var received time.Time
		if req.ReceivedAt != "" {
			t, err := time.Parse(time.RFC3339, req.ReceivedAt)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
					"received_at must be a valid RFC3339 timestamp", nil)
				return
			}
			received = t
		}
		provider, ok := parseProvider(w, req.Provider)
		if !ok {
			return
		}

		email, err := svc.IngestEmail(r.Context(), ai.IngestParams{
			TenantID:   tenantID,
			Sender:     req.Sender,
			Subject:    req.Subject,
			Body:       req.Body,
			ReceivedAt: received,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := ingestResponse{Email: email}
		if req.Triage {
			job, err := svc.TriggerTriage(r.Context(), email, ai.TriageOptions{
				Consensus: req.Consensus,
				Provider:  provider,
			})
			if err != nil {
				writeServiceError(w, err)
				return
			}
			out.Job = job
		}
		response.Created(w, out)
	}
}

// NewListEmailsHandler returns an http.HandlerFunc for GET /api/v1/emails.
func NewListEmailsHandler(rd EmailReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFrom(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		page, limit := parsePage(r)
		filter := store.EmailFilter{
			TenantID: tenantID,
			Sender:   q.Get("sender"),
			Category: models.Category(q.Get("category")),
			Priority: models.Priority(q.Get("priority")),
			Page:     page,
			Limit:    limit,
		}

		details := map[string][]string{}
		if filter.Category != "" && !filter.Category.Valid() {
			details["category"] = []string{"unknown category"}
		}
		if filter.Priority != "" && !filter.Priority.Valid() {
			details["priority"] = []string{"unknown priority"}
		}
		if s := q.Get("since"); s != "" {
			since, err := time.Parse(time.RFC3339, s)
			if err != nil {
				details["since"] = []string{"must be a valid RFC3339 timestamp"}
			}
			filter.Since = since
		}
		if len(details) > 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters", details)
			return
		}

		emails, total, err := rd.ListEmails(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list emails", nil)
			return
		}

		response.Collection(w, emails, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: total > page*limit,
		})
	}
}

type emailDetail struct {
	Email          *models.Email               `json:"email"`
	Classification *models.EmailClassification `json:"classification"`
}

// NewGetEmailHandler returns an http.HandlerFunc for GET /api/v1/emails/{emailID}.
// The classification is the latest one, or null when the email was never triaged.
func NewGetEmailHandler(rd EmailReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFrom(w, r)
		if !ok {
			return
		}
		emailID, ok := pathUUID(w, r, "emailID", "INVALID_EMAIL_ID", "email ID")
		if !ok {
			return
		}

		email, err := rd.GetEmail(r.Context(), emailID, tenantID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "EMAIL_NOT_FOUND", "Email not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load email", nil)
			return
		}

		out := emailDetail{Email: email}
		latest, err := rd.GetLatestClassification(r.Context(), emailID)
		switch {
		case err == nil:
			out.Classification = latest
		case !errors.Is(err, store.ErrNotFound):
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load classification", nil)
			return
		}
		response.JSON(w, out)
	}
}

// NewTriageEmailHandler returns an http.HandlerFunc for
// POST /api/v1/emails/{emailID}/triage. The body is optional.
func NewTriageEmailHandler(svc TriageService, rd EmailReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFrom(w, r)
		if !ok {
			return
		}
		emailID, ok := pathUUID(w, r, "emailID", "INVALID_EMAIL_ID", "email ID")
		if !ok {
			return
		}

		var opts triageOptions
		if r.ContentLength != 0 {
			if err := response.Decode(w, r, &opts); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
				return
			}
		}
		provider, ok := parseProvider(w, opts.Provider)
		if !ok {
			return
		}

		email, err := rd.GetEmail(r.Context(), emailID, tenantID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "EMAIL_NOT_FOUND", "Email not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load email", nil)
			return
		}

		job, err := svc.TriggerTriage(r.Context(), email, ai.TriageOptions{
			Consensus: opts.Consensus,
			Provider:  provider,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.Accepted(w, job)
	}
}

type askEmailRequest struct {
	Question string `json:"question"`
	Provider string `json:"provider"`
}

// NewAskEmailHandler returns an http.HandlerFunc for
// POST /api/v1/emails/{emailID}/ask.
func NewAskEmailHandler(svc TriageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFrom(w, r)
		if !ok {
			return
		}
		emailID, ok := pathUUID(w, r, "emailID", "INVALID_EMAIL_ID", "email ID")
		if !ok {
			return
		}

		var req askEmailRequest
		if err := response.Decode(w, r, &req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		provider, ok := parseProvider(w, req.Provider)
		if !ok {
			return
		}

		answer, err := svc.AskAboutEmail(r.Context(), tenantID, emailID, req.Question, provider)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.JSON(w, askResponse{Answer: answer})
	}
}
