package model

import "time"

// IssueType classifies a problem the worker flagged during processing.
type IssueType string

const (
	IssueDuplicateEmail       IssueType = "DUPLICATE_EMAIL"
	IssueInvalidEmail         IssueType = "INVALID_EMAIL"
	IssueExistingEmail        IssueType = "EXISTING_EMAIL"
	IssueMissingRequiredField IssueType = "MISSING_REQUIRED_FIELD"
)

// Issue is a flagged problem linking back to one or more staging rows.
// Key is used for worker idempotency and is never serialized.
type Issue struct {
	IssueID           int64      `json:"issue_id"`
	JobID             int64      `json:"issues_job_id"`
	Type              IssueType  `json:"issue_type"`
	Key               string     `json:"-"`
	Resolved          bool       `json:"issue_resolved"`
	Description       *string    `json:"issue_description"`
	ResolvedAt        *time.Time `json:"issue_resolved_at"`
	ResolvedBy        *string    `json:"issue_resolved_by"`
	ResolutionComment *string    `json:"issue_resolution_comment"`
	CreatedAt         time.Time  `json:"issue_created_at"`

	// AffectedRows are the staging rows that caused this issue,
	// joined through issue_items.
	AffectedRows []Staging `json:"affected_rows"`
}

// IssueItem links an issue to one staging row. It references both tables,
// so cascade deletes must remove items before issues and staging rows.
type IssueItem struct {
	IssueItemID int64 `json:"issue_item_id"`
	IssueID     int64 `json:"item_issue_id"`
	StagingID   int64 `json:"item_staging_id"`
}
