package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpdevelops/data-ingestion-api/internal/ingest"
	"github.com/rpdevelops/data-ingestion-api/internal/model"
)

// StagingUpdate carries the correctable fields of a staging row. Nil
// means leave the column as it is.
type StagingUpdate struct {
	Email     *string              `json:"staging_email"`
	FirstName *string              `json:"staging_first_name"`
	LastName  *string              `json:"staging_last_name"`
	Company   *string              `json:"staging_company"`
	Status    *model.StagingStatus `json:"staging_status"`
}

// Empty reports whether the update changes nothing.
func (u StagingUpdate) Empty() bool {
	return u.Email == nil && u.FirstName == nil && u.LastName == nil &&
		u.Company == nil && u.Status == nil
}

// UpdateStaging applies a partial update to a staging row. Ownership is
// enforced through the row's job, so rows of other users read as missing.
func (s *Store) UpdateStaging(ctx context.Context, userID string, stagingID int64, upd StagingUpdate) (*model.Staging, error) {
	sets := []string{}
	args := []any{stagingID, userID}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Email != nil {
		add("staging_email", *upd.Email)
	}
	if upd.FirstName != nil {
		add("staging_first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		add("staging_last_name", *upd.LastName)
	}
	if upd.Company != nil {
		add("staging_company", *upd.Company)
	}
	if upd.Status != nil {
		add("staging_status", *upd.Status)
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("update staging %d: no fields to update", stagingID)
	}

	query := fmt.Sprintf(`
		UPDATE staging_contacts st
		SET %s
		FROM jobs j
		WHERE st.staging_id = $1
		  AND j.job_id = st.staging_job_id
		  AND j.job_user_id = $2
		RETURNING st.staging_id, st.staging_job_id, st.staging_email,
			st.staging_first_name, st.staging_last_name, st.staging_company,
			st.staging_created_at, st.staging_status, st.staging_row_hash`,
		strings.Join(sets, ", "),
	)

	var row model.Staging
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&row.StagingID, &row.JobID, &row.Email,
		&row.FirstName, &row.LastName, &row.Company,
		&row.CreatedAt, &row.Status, &row.RowHash,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, ingest.ErrNotFound
		}
		return nil, fmt.Errorf("update staging %d: %w", stagingID, err)
	}
	return &row, nil
}

// ListJobStaging returns the staging rows of one job, in insertion order.
// The job must exist and belong to userID.
func (s *Store) ListJobStaging(ctx context.Context, userID string, jobID int64) ([]model.Staging, error) {
	if _, err := s.GetJob(ctx, userID, jobID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT staging_id, staging_job_id, staging_email,
			staging_first_name, staging_last_name, staging_company,
			staging_created_at, staging_status, staging_row_hash
		FROM staging_contacts
		WHERE staging_job_id = $1
		ORDER BY staging_id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list staging for job %d: %w", jobID, err)
	}
	defer rows.Close()

	out := []model.Staging{}
	for rows.Next() {
		var row model.Staging
		err := rows.Scan(
			&row.StagingID, &row.JobID, &row.Email,
			&row.FirstName, &row.LastName, &row.Company,
			&row.CreatedAt, &row.Status, &row.RowHash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan staging row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
