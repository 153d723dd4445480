package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dromeas/triage/internal/cache"
	"github.com/dromeas/triage/internal/ingest"
	"github.com/dromeas/triage/internal/store"
	"github.com/dromeas/triage/pkg/models"
)

const (
	jobTypeTriage  = "triage"
	jobStatusTTL   = 30 * time.Minute
	maxQuestionLen = 2000
)

var (
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidQuestion = errors.New("invalid question")
)

// Classifier is the part of the Gateway the triage service depends on.
type Classifier interface {
	Classify(ctx context.Context, req models.ClassificationRequest) (models.ClassificationResult, error)
	ClassifyWithConsensus(ctx context.Context, req models.ClassificationRequest) (models.ConsensusResult, error)
	Ask(ctx context.Context, question string, email models.EmailContext, provider models.ProviderID) string
}

// IngestParams is a raw inbound email.
type IngestParams struct {
	TenantID   uuid.UUID
	Sender     string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// TriageOptions selects how an email is classified.
type TriageOptions struct {
	Consensus bool
	Provider  models.ProviderID
}

// TriageService stores emails and runs persisted classifications through the gateway.
type TriageService struct {
	classifier Classifier
	store      store.Store
	cache      cache.Cache
}

func NewTriageService(classifier Classifier, st store.Store, ca cache.Cache) *TriageService {
	return &TriageService{
		classifier: classifier,
		store:      st,
		cache:      ca,
	}
}

// IngestEmail normalizes and stores an email. Re-ingesting the same message
// returns the stored row.
func (s *TriageService) IngestEmail(ctx context.Context, p IngestParams) (*models.Email, error) {
	sender := ingest.NormalizeSender(p.Sender)
	if sender == "" {
		return nil, fmt.Errorf("%w: sender is required", ErrInvalidEmail)
	}
	body := ingest.CleanBody(p.Body)
	if strings.TrimSpace(p.Subject) == "" && body == "" {
		return nil, fmt.Errorf("%w: subject or body is required", ErrInvalidEmail)
	}

	now := time.Now().UTC()
	received := p.ReceivedAt
	if received.IsZero() {
		received = now
	}

	email := &models.Email{
		ID:          uuid.New(),
		TenantID:    p.TenantID,
		Fingerprint: ingest.Fingerprint(sender, p.Subject, body),
		Sender:      sender,
		Subject:     strings.TrimSpace(p.Subject),
		Body:        ingest.TruncateUTF8(body, ingest.MaxStoredBodyBytes),
		ReceivedAt:  received.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	stored, err := s.store.UpsertEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("storing email: %w", err)
	}
	return stored, nil
}

// ClassifyEmail classifies a stored email and persists the outcome. When no
// provider produced a result nothing is stored and the gateway error is returned.
func (s *TriageService) ClassifyEmail(ctx context.Context, email *models.Email, opts TriageOptions, jobID *uuid.UUID) (*models.EmailClassification, error) {
	req := models.ClassificationRequest{
		Sender:            email.Sender,
		Subject:           email.Subject,
		Body:              email.Body,
		PreferredProvider: opts.Provider,
	}

	rec := &models.EmailClassification{
		ID:        uuid.New(),
		EmailID:   email.ID,
		TenantID:  email.TenantID,
		JobID:     jobID,
		Mode:      models.ModeSingle,
		CreatedAt: time.Now().UTC(),
	}

	if opts.Consensus {
		res, err := s.classifier.ClassifyWithConsensus(ctx, req)
		if err != nil {
			return nil, err
		}
		rec.Mode = models.ModeConsensus
		rec.Result = res.Merged
		rec.Individual = res.Individual
	} else {
		res, err := s.classifier.Classify(ctx, req)
		if err != nil {
			return nil, err
		}
		rec.Result = res
	}

	r := rec.Result
	provider := string(r.Provider)
	rec.Provider = &provider
	rec.Category = r.Category
	rec.Priority = r.Priority
	rec.Urgency = r.Urgency
	rec.Sentiment = r.Sentiment
	rec.RequiresResponse = r.RequiresResponse
	rec.Confidence = r.ConfidenceScore

	if err := s.store.CreateClassification(ctx, rec); err != nil {
		return nil, fmt.Errorf("storing classification: %w", err)
	}
	return rec, nil
}

// TriggerTriage creates a pending job and classifies the email in a background
// goroutine. While a job for the same email is still in flight that job is
// returned instead of starting another one.
func (s *TriageService) TriggerTriage(ctx context.Context, email *models.Email, opts TriageOptions) (*models.Job, error) {
	if email == nil || email.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: ID is required", ErrInvalidEmail)
	}

	if job := s.activeJob(ctx, email); job != nil {
		return job, nil
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:        uuid.New(),
		TenantID:  email.TenantID,
		Type:      jobTypeTriage,
		Status:    models.JobStatusPending,
		EmailID:   &email.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	claimed, err := s.cache.ClaimActiveTriageJob(ctx, email.ID, job.ID, jobStatusTTL)
	if err != nil {
		slog.Warn("claiming active triage job", "error", err, "email_id", email.ID)
	} else if !claimed {
		if active := s.activeJob(ctx, email); active != nil {
			return active, nil
		}
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		if claimed {
			_ = s.cache.ClearActiveTriageJob(ctx, email.ID)
		}
		return nil, fmt.Errorf("creating job: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusPending, jobStatusTTL)

	go s.runTriage(email, job.ID, opts)

	return job, nil
}

func (s *TriageService) activeJob(ctx context.Context, email *models.Email) *models.Job {
	jobID, found, err := s.cache.GetActiveTriageJob(ctx, email.ID)
	if err != nil || !found {
		return nil
	}
	job, err := s.store.GetJob(ctx, jobID, email.TenantID)
	if errors.Is(err, store.ErrNotFound) {
		// The claiming caller has not stored its job yet.
		return &models.Job{
			ID:       jobID,
			TenantID: email.TenantID,
			Type:     jobTypeTriage,
			Status:   models.JobStatusPending,
			EmailID:  &email.ID,
		}
	}
	if err != nil {
		return nil
	}
	if job.Status == models.JobStatusPending || job.Status == models.JobStatusRunning {
		return job
	}
	return nil
}

// runTriage always leaves the job completed or failed, even if classification panics.
func (s *TriageService) runTriage(email *models.Email, jobID uuid.UUID, opts TriageOptions) {
	ctx := context.Background()

	defer func() {
		_ = s.cache.ClearActiveTriageJob(ctx, email.ID)
	}()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in runTriage", "error", r, "job_id", jobID)
			s.failJob(ctx, jobID, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := s.store.UpdateJobStatus(ctx, jobID, models.JobStatusRunning); err != nil {
		slog.Error("marking triage job running", "error", err, "job_id", jobID)
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusRunning, jobStatusTTL)

	rec, err := s.ClassifyEmail(ctx, email, opts, &jobID)
	if err != nil {
		slog.Warn("triage job failed", "job_id", jobID, "email_id", email.ID, "error", err)
		s.failJob(ctx, jobID, err.Error())
		return
	}

	_ = s.store.UpdateJobStatus(ctx, jobID, models.JobStatusCompleted)
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusCompleted, jobStatusTTL)
	slog.Info("triage job completed", "job_id", jobID, "email_id", email.ID,
		"category", rec.Category, "priority", rec.Priority, "mode", rec.Mode)
}

func (s *TriageService) failJob(ctx context.Context, jobID uuid.UUID, msg string) {
	_ = s.store.UpdateJobStatus(ctx, jobID, models.JobStatusFailed, store.WithErrorMessage(msg))
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, jobStatusTTL)
}

// JobResult returns a job and, once it completed, the classification it produced.
// The cached status is preferred over the stored one while the job is in flight.
func (s *TriageService) JobResult(ctx context.Context, tenantID, jobID uuid.UUID) (*models.Job, *models.EmailClassification, error) {
	job, err := s.store.GetJob(ctx, jobID, tenantID)
	if err != nil {
		return nil, nil, err
	}
	if status, found, err := s.cache.GetJobStatus(ctx, jobID); err == nil && found && job.Status != models.JobStatusCompleted && job.Status != models.JobStatusFailed {
		job.Status = status
	}
	if job.Status != models.JobStatusCompleted {
		return job, nil, nil
	}

	rec, err := s.store.GetClassificationByJobID(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return job, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return job, rec, nil
}

// AskAboutEmail answers a question about a stored email, giving the provider
// the latest classification when there is one.
func (s *TriageService) AskAboutEmail(ctx context.Context, tenantID, emailID uuid.UUID, question string, provider models.ProviderID) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: question is required", ErrInvalidQuestion)
	}
	if len(question) > maxQuestionLen {
		return "", fmt.Errorf("%w: question exceeds %d bytes", ErrInvalidQuestion, maxQuestionLen)
	}

	email, err := s.store.GetEmail(ctx, emailID, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrEmailNotFound
	}
	if err != nil {
		return "", fmt.Errorf("loading email: %w", err)
	}

	ec := models.EmailContext{Sender: email.Sender, Subject: email.Subject, Body: email.Body}
	latest, err := s.store.GetLatestClassification(ctx, emailID)
	switch {
	case err == nil:
		ec.Classification = &latest.Result
	case !errors.Is(err, store.ErrNotFound):
		slog.Warn("loading latest classification for question", "email_id", emailID, "error", err)
	}

	return s.classifier.Ask(ctx, question, ec, provider), nil
}

var _ Classifier = (*Gateway)(nil)
