package ingest

// ledger.go is the authoritative state machine for a job's lifecycle.
// The API may only create (-> PENDING), cancel, or republish a job; all
// other transitions belong to the external worker.

import (
	"context"
	"errors"
	"time"

	"github.com/rpdevelops/data-ingestion-api/internal/logging"
	"github.com/rpdevelops/data-ingestion-api/internal/model"
)

// workerTransitions are the status changes the external worker may apply.
// PENDING is terminal from the API's point of view until the worker picks
// the job up.
var workerTransitions = map[model.JobStatus][]model.JobStatus{
	model.StatusPending:    {model.StatusProcessing},
	model.StatusProcessing: {model.StatusCompleted, model.StatusNeedsReview, model.StatusFailed},
}

// CanTransition reports whether the worker may move a job from one status
// to another.
func CanTransition(from, to model.JobStatus) bool {
	for _, next := range workerTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Deletable reports whether a job in the given status may be cancelled.
// PROCESSING is protected because the worker is using the job's state;
// COMPLETED because its results were already delivered.
func Deletable(s model.JobStatus) bool {
	switch s {
	case model.StatusPending, model.StatusNeedsReview, model.StatusFailed:
		return true
	}
	return false
}

// Ledger applies lifecycle rules on top of the Store.
type Ledger struct {
	store Store
}

// NewLedger returns a Ledger backed by the given store.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Create inserts a new job in PENDING, the sole initial state. The job's
// ID and creation timestamp are filled in by the store.
func (l *Ledger) Create(ctx context.Context, job *model.Job) error {
	job.Status = model.StatusPending
	job.CreatedAt = time.Now().UTC()
	return l.store.InsertJob(ctx, job)
}

// Get returns the job only when it belongs to userID; a foreign job is
// reported as ErrNotFound, same as a missing one.
func (l *Ledger) Get(ctx context.Context, userID string, jobID int64) (*model.Job, error) {
	return l.store.GetJob(ctx, userID, jobID)
}

// Cancel deletes an owned job and all its dependent staging, issue, and
// issue-item rows in one transaction. Jobs that are PROCESSING or
// COMPLETED are left untouched and reported with a typed error carrying
// the current status.
func (l *Ledger) Cancel(ctx context.Context, userID string, jobID int64) error {
	job, err := l.store.GetJob(ctx, userID, jobID)
	if err != nil {
		return err
	}

	if !Deletable(job.Status) {
		return &DeleteNotAllowedError{Status: job.Status}
	}

	if err := l.store.DeleteJobCascade(ctx, jobID); err != nil {
		return err
	}

	logging.FromContext(ctx).Info("job cancelled",
		"job_id", jobID,
		"user_id", userID,
		"status", string(job.Status),
	)
	return nil
}

// IsNotFound reports whether err means "missing or not yours".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
