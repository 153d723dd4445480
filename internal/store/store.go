package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/dromeas/triage/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	UpsertEmail(ctx context.Context, email *models.Email) (*models.Email, error)
	GetEmail(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Email, error)
	ListEmails(ctx context.Context, filter EmailFilter) ([]*models.Email, int, error)

	CreateClassification(ctx context.Context, c *models.EmailClassification) error
	GetClassificationByJobID(ctx context.Context, jobID uuid.UUID) (*models.EmailClassification, error)
	GetLatestClassification(ctx context.Context, emailID uuid.UUID) (*models.EmailClassification, error)

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
}

// EmailFilter narrows ListEmails. Category and Priority match against the
// latest classification of each email.
type EmailFilter struct {
	TenantID uuid.UUID
	Sender   string
	Category models.Category
	Priority models.Priority
	Since    time.Time
	Page     int
	Limit    int
}

type jobUpdateParams struct {
	ErrorMessage *string
}

type JobUpdateOption func(*jobUpdateParams)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}
