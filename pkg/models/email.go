package models

import (
	"time"

	"github.com/google/uuid"
)

// Email is an inbound message stored for triage. Fingerprint deduplicates
// re-ingestion of the same message within a tenant.
type Email struct {
	ID          uuid.UUID `db:"id"          json:"id"`
	TenantID    uuid.UUID `db:"tenant_id"   json:"tenant_id"`
	Fingerprint string    `db:"fingerprint" json:"fingerprint"`
	Sender      string    `db:"sender"      json:"sender"`
	Subject     string    `db:"subject"     json:"subject"`
	Body        string    `db:"body"        json:"body"`
	ReceivedAt  time.Time `db:"received_at" json:"received_at"`
	CreatedAt   time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"  json:"updated_at"`
}

const (
	ModeSingle    = "single"
	ModeConsensus = "consensus"
)

// EmailClassification is a persisted ClassificationResult. The headline fields
// are denormalized into columns for filtering; Result keeps the full object.
type EmailClassification struct {
	ID               uuid.UUID              `db:"id"                json:"id"`
	EmailID          uuid.UUID              `db:"email_id"          json:"email_id"`
	TenantID         uuid.UUID              `db:"tenant_id"         json:"tenant_id"`
	JobID            *uuid.UUID             `db:"job_id"            json:"job_id,omitempty"`
	Mode             string                 `db:"mode"              json:"mode"`
	Provider         *string                `db:"provider"          json:"provider"`
	Category         Category               `db:"category"          json:"category"`
	Priority         Priority               `db:"priority"          json:"priority"`
	Urgency          Urgency                `db:"urgency"           json:"urgency"`
	Sentiment        Sentiment              `db:"sentiment"         json:"sentiment"`
	RequiresResponse bool                   `db:"requires_response" json:"requires_response"`
	Confidence       float64                `db:"confidence"        json:"confidence"`
	Result           ClassificationResult   `db:"result"            json:"result"`
	Individual       []ClassificationResult `db:"individual"        json:"individual,omitempty"`
	CreatedAt        time.Time              `db:"created_at"        json:"created_at"`
}
