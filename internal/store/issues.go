package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rpdevelops/data-ingestion-api/internal/ingest"
	"github.com/rpdevelops/data-ingestion-api/internal/model"
)

const issueColumns = `i.issue_id, i.issues_job_id, i.issue_type, i.issue_key,
	i.issue_resolved, i.issue_description, i.issue_resolved_at,
	i.issue_resolved_by, i.issue_resolution_comment, i.issue_created_at`

// IssueSummary is an issue listing together with resolution counts.
type IssueSummary struct {
	Issues     []model.Issue `json:"issues"`
	Total      int           `json:"total"`
	Resolved   int           `json:"resolved"`
	Unresolved int           `json:"unresolved"`
}

// ListIssues returns every issue across the owner's jobs, with affected
// staging rows attached.
func (s *Store) ListIssues(ctx context.Context, userID string) (*IssueSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+issueColumns+`
		FROM issues i
		JOIN jobs j ON j.job_id = i.issues_job_id
		WHERE j.job_user_id = $1
		ORDER BY i.issue_created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return s.collectIssues(ctx, rows)
}

// ListJobIssues returns the issues of one job. The job must exist and
// belong to userID, otherwise ingest.ErrNotFound.
func (s *Store) ListJobIssues(ctx context.Context, userID string, jobID int64) (*IssueSummary, error) {
	if _, err := s.GetJob(ctx, userID, jobID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+issueColumns+`
		FROM issues i
		WHERE i.issues_job_id = $1
		ORDER BY i.issue_created_at DESC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list issues for job %d: %w", jobID, err)
	}
	return s.collectIssues(ctx, rows)
}

// collectIssues scans an issue result set and loads the affected staging
// rows for all of them in a single follow-up query.
func (s *Store) collectIssues(ctx context.Context, rows pgx.Rows) (*IssueSummary, error) {
	defer rows.Close()

	summary := &IssueSummary{Issues: []model.Issue{}}
	index := map[int64]int{}
	var ids []int64

	for rows.Next() {
		var issue model.Issue
		err := rows.Scan(
			&issue.IssueID, &issue.JobID, &issue.Type, &issue.Key,
			&issue.Resolved, &issue.Description, &issue.ResolvedAt,
			&issue.ResolvedBy, &issue.ResolutionComment, &issue.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issue.AffectedRows = []model.Staging{}

		index[issue.IssueID] = len(summary.Issues)
		ids = append(ids, issue.IssueID)
		summary.Issues = append(summary.Issues, issue)

		summary.Total++
		if issue.Resolved {
			summary.Resolved++
		} else {
			summary.Unresolved++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}

	if len(ids) == 0 {
		return summary, nil
	}

	affected, err := s.pool.Query(ctx, `
		SELECT it.item_issue_id,
			st.staging_id, st.staging_job_id, st.staging_email,
			st.staging_first_name, st.staging_last_name, st.staging_company,
			st.staging_created_at, st.staging_status, st.staging_row_hash
		FROM issue_items it
		JOIN staging_contacts st ON st.staging_id = it.item_staging_id
		WHERE it.item_issue_id = ANY($1)
		ORDER BY st.staging_id`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("load affected rows: %w", err)
	}
	defer affected.Close()

	for affected.Next() {
		var issueID int64
		var row model.Staging
		err := affected.Scan(
			&issueID,
			&row.StagingID, &row.JobID, &row.Email,
			&row.FirstName, &row.LastName, &row.Company,
			&row.CreatedAt, &row.Status, &row.RowHash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan affected row: %w", err)
		}
		if pos, ok := index[issueID]; ok {
			summary.Issues[pos].AffectedRows = append(summary.Issues[pos].AffectedRows, row)
		}
	}
	return summary, affected.Err()
}

// ResolveIssue marks an issue resolved on behalf of userID. Ownership is
// checked through the issue's job.
func (s *Store) ResolveIssue(ctx context.Context, userID string, issueID int64, comment *string) (*model.Issue, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE issues i
		SET issue_resolved = TRUE,
			issue_resolved_at = now(),
			issue_resolved_by = $2,
			issue_resolution_comment = $3
		FROM jobs j
		WHERE i.issue_id = $1
		  AND j.job_id = i.issues_job_id
		  AND j.job_user_id = $2
		RETURNING `+issueColumns,
		issueID, userID, comment,
	)

	var issue model.Issue
	err := row.Scan(
		&issue.IssueID, &issue.JobID, &issue.Type, &issue.Key,
		&issue.Resolved, &issue.Description, &issue.ResolvedAt,
		&issue.ResolvedBy, &issue.ResolutionComment, &issue.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, ingest.ErrNotFound
		}
		return nil, fmt.Errorf("resolve issue %d: %w", issueID, err)
	}
	issue.AffectedRows = []model.Staging{}
	return &issue, nil
}
