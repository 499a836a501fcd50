package model

import "time"

// StagingStatus is the review state of one parsed CSV data row.
type StagingStatus string

const (
	StagingReady   StagingStatus = "READY"
	StagingSuccess StagingStatus = "SUCCESS"
	StagingDiscard StagingStatus = "DISCARD"
	StagingIssue   StagingStatus = "ISSUE"
)

// Valid reports whether s is one of the known staging statuses.
func (s StagingStatus) Valid() bool {
	switch s {
	case StagingReady, StagingSuccess, StagingDiscard, StagingIssue:
		return true
	}
	return false
}

// Staging is one parsed CSV data row pending validation or promotion.
// Produced by the external worker; the API only corrects its fields.
// RowHash is used for worker idempotency and is never serialized.
type Staging struct {
	StagingID int64          `json:"staging_id"`
	JobID     int64          `json:"staging_job_id"`
	Email     *string        `json:"staging_email"`
	FirstName *string        `json:"staging_first_name"`
	LastName  *string        `json:"staging_last_name"`
	Company   *string        `json:"staging_company"`
	CreatedAt time.Time      `json:"staging_created_at"`
	Status    *StagingStatus `json:"staging_status"`
	RowHash   string         `json:"-"`
}
