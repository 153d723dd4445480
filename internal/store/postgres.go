package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/dromeas/triage/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tenants ---

func (s *PostgresStore) GetDefaultTenant(ctx context.Context) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM tenants WHERE name = 'default' LIMIT 1`,
	).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default tenant: %w", err)
	}
	return &t, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Emails ---

const emailColumns = `id, tenant_id, fingerprint, sender, subject, body, received_at, created_at, updated_at`

func scanEmail(row pgx.Row) (*models.Email, error) {
	var e models.Email
	err := row.Scan(&e.ID, &e.TenantID, &e.Fingerprint, &e.Sender, &e.Subject, &e.Body,
		&e.ReceivedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpsertEmail inserts the email or, when the tenant already holds one with the
// same fingerprint, returns the stored row with updated_at bumped.
func (s *PostgresStore) UpsertEmail(ctx context.Context, email *models.Email) (*models.Email, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO emails (`+emailColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (tenant_id, fingerprint) DO UPDATE SET updated_at = NOW()
		 RETURNING `+emailColumns,
		email.ID, email.TenantID, email.Fingerprint, email.Sender, email.Subject, email.Body,
		email.ReceivedAt, email.CreatedAt, email.UpdatedAt)
	e, err := scanEmail(row)
	if err != nil {
		return nil, fmt.Errorf("upsert email: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) GetEmail(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Email, error) {
	e, err := scanEmail(s.pool.QueryRow(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get email: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) ListEmails(ctx context.Context, filter EmailFilter) ([]*models.Email, int, error) {
	conditions := []string{"e.tenant_id = $1"}
	args := []any{filter.TenantID}
	argIdx := 2

	if filter.Sender != "" {
		conditions = append(conditions, fmt.Sprintf("e.sender = $%d", argIdx))
		args = append(args, filter.Sender)
		argIdx++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("e.received_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}
	if filter.Category != "" || filter.Priority != "" {
		latest := `(SELECT c.category, c.priority FROM email_classifications c
			WHERE c.email_id = e.id ORDER BY c.created_at DESC LIMIT 1)`
		if filter.Category != "" {
			conditions = append(conditions, fmt.Sprintf("(SELECT category FROM %s lc) = $%d", latest, argIdx))
			args = append(args, string(filter.Category))
			argIdx++
		}
		if filter.Priority != "" {
			conditions = append(conditions, fmt.Sprintf("(SELECT priority FROM %s lc) = $%d", latest, argIdx))
			args = append(args, string(filter.Priority))
			argIdx++
		}
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM emails e WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count emails: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(
		`SELECT e.id, e.tenant_id, e.fingerprint, e.sender, e.subject, e.body, e.received_at, e.created_at, e.updated_at
		 FROM emails e WHERE %s ORDER BY e.received_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list emails: %w", err)
	}
	defer rows.Close()

	emails := []*models.Email{}
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan email: %w", err)
		}
		emails = append(emails, e)
	}
	return emails, total, rows.Err()
}

// --- Email Classifications ---

const classificationColumns = `id, email_id, tenant_id, job_id, mode, provider, category, priority, urgency,
	sentiment, requires_response, confidence, result, individual, created_at`

func (s *PostgresStore) CreateClassification(ctx context.Context, c *models.EmailClassification) error {
	result, err := json.Marshal(c.Result)
	if err != nil {
		return fmt.Errorf("encode classification result: %w", err)
	}
	var individual []byte
	if c.Individual != nil {
		if individual, err = json.Marshal(c.Individual); err != nil {
			return fmt.Errorf("encode individual results: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO email_classifications (`+classificationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		c.ID, c.EmailID, c.TenantID, c.JobID, c.Mode, c.Provider, string(c.Category), string(c.Priority),
		string(c.Urgency), string(c.Sentiment), c.RequiresResponse, c.Confidence, result, individual, c.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create classification: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetClassificationByJobID(ctx context.Context, jobID uuid.UUID) (*models.EmailClassification, error) {
	c, err := scanClassification(s.pool.QueryRow(ctx,
		`SELECT `+classificationColumns+` FROM email_classifications WHERE job_id = $1`, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get classification by job: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) GetLatestClassification(ctx context.Context, emailID uuid.UUID) (*models.EmailClassification, error) {
	c, err := scanClassification(s.pool.QueryRow(ctx,
		`SELECT `+classificationColumns+` FROM email_classifications
		 WHERE email_id = $1 ORDER BY created_at DESC LIMIT 1`, emailID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest classification: %w", err)
	}
	return c, nil
}

func scanClassification(row pgx.Row) (*models.EmailClassification, error) {
	var (
		c                                       models.EmailClassification
		category, priority, urgency, sentiment string
		result, individual                      []byte
	)
	err := row.Scan(&c.ID, &c.EmailID, &c.TenantID, &c.JobID, &c.Mode, &c.Provider,
		&category, &priority, &urgency, &sentiment, &c.RequiresResponse, &c.Confidence,
		&result, &individual, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Category = models.Category(category)
	c.Priority = models.Priority(priority)
	c.Urgency = models.Urgency(urgency)
	c.Sentiment = models.Sentiment(sentiment)

	if err := json.Unmarshal(result, &c.Result); err != nil {
		return nil, fmt.Errorf("decode classification result: %w", err)
	}
	if len(individual) > 0 {
		if err := json.Unmarshal(individual, &c.Individual); err != nil {
			return nil, fmt.Errorf("decode individual results: %w", err)
		}
	}
	return &c, nil
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, tenant_id, type, status, email_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.TenantID, job.Type, job.Status, job.EmailID, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, type, status, email_id, error_message, started_at, completed_at, created_at, updated_at
		 FROM jobs WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&j.ID, &j.TenantID, &j.Type, &j.Status, &j.EmailID, &j.ErrorMessage,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

// A pending job may fail directly when it never got to run.
var validTransitions = map[string][]string{
	models.JobStatusPending: {models.JobStatusRunning, models.JobStatusFailed},
	models.JobStatusRunning: {models.JobStatusCompleted, models.JobStatusFailed},
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	allowed := validTransitions[currentStatus]
	valid := false
	for _, a := range allowed {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE jobs SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status == models.JobStatusRunning {
		query += fmt.Sprintf(", started_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if status == models.JobStatusCompleted || status == models.JobStatusFailed {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
	}

	query += " WHERE id = $1"

	_, err = s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
