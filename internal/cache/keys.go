package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("triage:job:%s", jobID)
}

// ActiveTriageKey holds the id of the running triage job for an email.
func ActiveTriageKey(emailID uuid.UUID) string {
	return fmt.Sprintf("triage:email:%s:active", emailID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
