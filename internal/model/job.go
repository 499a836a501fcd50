// Package model defines the persistent entities of the ingestion workflow:
// jobs, staging rows, issues, and contacts. Field names in JSON mirror the
// column names the frontend and the external worker already depend on.
package model

import "time"

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

const (
	// StatusPending is the sole initial state, set at creation.
	StatusPending JobStatus = "PENDING"
	// StatusProcessing is set by the external worker when it picks up a job.
	StatusProcessing JobStatus = "PROCESSING"
	// StatusNeedsReview means the worker finished but flagged issues.
	StatusNeedsReview JobStatus = "NEEDS_REVIEW"
	// StatusCompleted means all rows were promoted to contacts.
	StatusCompleted JobStatus = "COMPLETED"
	// StatusFailed means the worker could not process the file.
	StatusFailed JobStatus = "FAILED"
)

// Valid reports whether s is one of the known job statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusNeedsReview, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Job is one user-submitted CSV file and its processing lifecycle record.
// Owned exclusively by its creating user; status and progress fields are
// mutated by the external worker, never directly by API callers.
type Job struct {
	JobID            int64      `json:"job_id"`
	UserID           string     `json:"job_user_id"`
	OriginalFilename string     `json:"job_original_filename"`
	S3ObjectKey      string     `json:"job_s3_object_key"`
	Status           JobStatus  `json:"job_status"`
	TotalRows        int        `json:"job_total_rows"`
	ProcessedRows    int        `json:"job_processed_rows"`
	IssueCount       int        `json:"job_issue_count"`
	CreatedAt        time.Time  `json:"job_created_at"`
	ProcessStart     *time.Time `json:"job_process_start,omitempty"`
	ProcessEnd       *time.Time `json:"job_process_end,omitempty"`
}
