package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rpdevelops/data-ingestion-api/internal/ingest"
	"github.com/rpdevelops/data-ingestion-api/internal/model"
)

const jobColumns = `job_id, job_user_id, job_original_filename, job_s3_object_key,
	job_status, job_total_rows, job_processed_rows, job_issue_count,
	job_created_at, job_process_start, job_process_end`

// InsertJob persists a new job row. A unique violation on the owner plus
// filename index surfaces as ingest.ErrFilenameTaken so the coordinator
// can roll back and report the conflict.
func (s *Store) InsertJob(ctx context.Context, job *model.Job) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO jobs (job_user_id, job_original_filename, job_s3_object_key,
			job_status, job_total_rows)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING job_id, job_created_at`,
		job.UserID, job.OriginalFilename, job.S3ObjectKey, job.Status, job.TotalRows,
	)

	if err := row.Scan(&job.JobID, &job.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ingest.ErrFilenameTaken
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob returns the job only if it belongs to userID. Jobs owned by
// other users are indistinguishable from missing ones.
func (s *Store) GetJob(ctx context.Context, userID string, jobID int64) (*model.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE job_id = $1 AND job_user_id = $2`,
		jobID, userID,
	)

	job, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ingest.ErrNotFound
		}
		return nil, fmt.Errorf("get job %d: %w", jobID, err)
	}
	return job, nil
}

// FindJobByFilename returns the owner's job with this filename, or
// (nil, nil) when none exists.
func (s *Store) FindJobByFilename(ctx context.Context, userID, filename string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE job_user_id = $1 AND job_original_filename = $2`,
		userID, filename,
	)

	job, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find job by filename: %w", err)
	}
	return job, nil
}

// ListJobs returns all of the owner's jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, userID string) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE job_user_id = $1
		ORDER BY job_created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []model.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// DeleteJob removes the job row only. Used when unwinding a partially
// completed upload; dependent rows do not exist yet at that point.
func (s *Store) DeleteJob(ctx context.Context, jobID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("delete job %d: %w", jobID, err)
	}
	return nil
}

// DeleteJobCascade removes everything attached to a job inside one
// transaction: issue items first, then issues, staging rows, and finally
// the job itself. Foreign keys force this order.
func (s *Store) DeleteJobCascade(ctx context.Context, jobID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cascade delete: %w", err)
	}
	defer tx.Rollback(ctx)

	steps := []string{
		`DELETE FROM issue_items WHERE item_issue_id IN
			(SELECT issue_id FROM issues WHERE issues_job_id = $1)`,
		`DELETE FROM issues WHERE issues_job_id = $1`,
		`DELETE FROM staging_contacts WHERE staging_job_id = $1`,
		`DELETE FROM jobs WHERE job_id = $1`,
	}
	for _, q := range steps {
		if _, err := tx.Exec(ctx, q, jobID); err != nil {
			return fmt.Errorf("cascade delete job %d: %w", jobID, err)
		}
	}

	return tx.Commit(ctx)
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var job model.Job
	err := row.Scan(
		&job.JobID, &job.UserID, &job.OriginalFilename, &job.S3ObjectKey,
		&job.Status, &job.TotalRows, &job.ProcessedRows, &job.IssueCount,
		&job.CreatedAt, &job.ProcessStart, &job.ProcessEnd,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
