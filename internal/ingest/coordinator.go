package ingest

// coordinator.go orchestrates the upload protocol across three independent
// systems: blob store, relational store, and work queue. There is no shared
// transaction coordinator, so the protocol is a manual saga with strict
// ordering and best-effort compensation:
//
//	validate -> duplicate check -> blob put -> ledger insert -> queue publish
//
// The blob is written before the job row so a visible job always has
// retrievable content, and the queue message is published last so the
// worker never receives a job that does not durably exist. When the
// publish fails, the job row and the blob are deleted best-effort; a
// failed secondary delete is logged, never surfaced.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rpdevelops/data-ingestion-api/internal/logging"
	"github.com/rpdevelops/data-ingestion-api/internal/model"
)

// Store is the ownership-scoped persistence collaborator. Implementations
// must be safe for concurrent use.
type Store interface {
	// InsertJob persists a new job and fills in JobID and CreatedAt.
	// Returns ErrFilenameTaken when the (owner, filename) constraint
	// rejects the insert.
	InsertJob(ctx context.Context, job *model.Job) error
	// GetJob returns the job only if it belongs to userID, ErrNotFound
	// otherwise.
	GetJob(ctx context.Context, userID string, jobID int64) (*model.Job, error)
	// FindJobByFilename returns the owner's job with this filename, or
	// (nil, nil) when none exists.
	FindJobByFilename(ctx context.Context, userID, filename string) (*model.Job, error)
	// ListJobs returns the owner's jobs, newest first.
	ListJobs(ctx context.Context, userID string) ([]model.Job, error)
	// DeleteJob removes the job row only. Used for saga compensation.
	DeleteJob(ctx context.Context, jobID int64) error
	// DeleteJobCascade removes issue items, issues, staging rows, and the
	// job itself in one transaction, in that order.
	DeleteJobCascade(ctx context.Context, jobID int64) error
}

// BlobStore stores raw file content by key. Implementations must be safe
// for concurrent use.
type BlobStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// JobMessage is the wire contract the external worker depends on: exactly
// two fields, job_id and s3_key.
type JobMessage struct {
	JobID int64  `json:"job_id"`
	S3Key string `json:"s3_key"`
}

// Queue publishes job-ready messages. Publish failures caused by a missing
// queue resource must satisfy errors.Is(err, ErrQueueMissing).
type Queue interface {
	Publish(ctx context.Context, msg JobMessage) (messageID string, err error)
}

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_uploads_total",
			Help: "CSV upload attempts by outcome",
		},
		[]string{"outcome"},
	)
	uploadRollbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_upload_rollbacks_total",
			Help: "Upload sagas that required compensation after a publish failure",
		},
	)
)

// UploadCandidate is one upload request: raw content, declared filename,
// and the owner it will belong to. It lives for the duration of a single
// Submit call.
type UploadCandidate struct {
	UserID   string
	Filename string
	Content  []byte
}

// SubmitResult is returned on a fully successful upload.
type SubmitResult struct {
	JobID    int64
	RowCount int
}

// Coordinator runs the upload saga. Construct once per process and share
// across request handlers; all state lives in the collaborators.
type Coordinator struct {
	validator *Validator
	ledger    *Ledger
	store     Store
	blobs     BlobStore
	queue     Queue
}

// NewCoordinator wires the coordinator with its collaborators. maxFileSize
// is the admission ceiling in bytes; non-positive means the default.
func NewCoordinator(store Store, blobs BlobStore, queue Queue, maxFileSize int64) *Coordinator {
	return &Coordinator{
		validator: NewValidator(maxFileSize),
		ledger:    NewLedger(store),
		store:     store,
		blobs:     blobs,
		queue:     queue,
	}
}

// Ledger exposes the lifecycle rules sharing this coordinator's store.
func (c *Coordinator) Ledger() *Ledger { return c.ledger }

// duplicateOf reports whether an existing job makes the candidate a
// duplicate. The policy is filename-based: the admission fingerprint is
// recorded on the result but not consulted. Swapping to content-hash
// comparison only requires changing this function.
func duplicateOf(existing *model.Job) bool {
	return existing != nil
}

// Submit runs the full upload protocol and returns the new job's ID and
// row count. Validation and the duplicate check produce no side effects;
// once the blob write begins the protocol runs to completion or explicit
// failure, so a client disconnect cannot leave half-committed state.
func (c *Coordinator) Submit(ctx context.Context, cand UploadCandidate) (*SubmitResult, error) {
	log := logging.WithFields(ctx, "user_id", cand.UserID, "file_name", cand.Filename)

	res, err := c.validator.Admit(cand.Filename, cand.Content)
	if err != nil {
		log.Warn("CSV validation failed", "error", err)
		uploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	log.Info("CSV file validation passed",
		"file_size", len(cand.Content),
		"row_count", res.RowCount,
		"encoding", res.Encoding,
		"delimiter", string(res.Delimiter),
	)

	existing, err := c.store.FindJobByFilename(ctx, cand.UserID, cand.Filename)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, &DependencyError{Stage: StageDuplicateCheck, Err: err}
	}
	if duplicateOf(existing) {
		log.Warn("duplicate file rejected", "existing_job_id", existing.JobID)
		uploadsTotal.WithLabelValues("duplicate").Inc()
		return nil, &DuplicateUploadError{Filename: cand.Filename}
	}

	key := blobKey(cand.UserID, cand.Filename)
	if err := c.blobs.Put(ctx, key, cand.Content, "text/csv"); err != nil {
		log.Error("blob store write failed", "s3_key", key, "error", err)
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, &DependencyError{Stage: StageStorageWrite, Err: err}
	}

	job := &model.Job{
		UserID:           cand.UserID,
		OriginalFilename: cand.Filename,
		S3ObjectKey:      key,
		TotalRows:        res.RowCount,
	}
	if err := c.ledger.Create(ctx, job); err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, ErrFilenameTaken) {
			// A concurrent upload for the same filename won the race
			// between our duplicate check and the insert. The blob just
			// written is now an orphan; remove it since nothing
			// references it yet.
			log.Warn("concurrent duplicate detected on insert", "s3_key", key)
			c.discardBlob(ctx, key)
			uploadsTotal.WithLabelValues("duplicate").Inc()
			return nil, &DuplicateUploadError{Filename: cand.Filename}
		}
		// The blob is orphaned; there is no prior write to roll back.
		// Left for manual cleanup, flagged loudly.
		log.Error("job creation failed, blob orphaned", "s3_key", key, "error", err)
		return nil, &DependencyError{Stage: StageJobPersist, Err: err}
	}

	if _, err := c.queue.Publish(ctx, JobMessage{JobID: job.JobID, S3Key: key}); err != nil {
		log.Error("queue publish failed, rolling back job and blob",
			"job_id", job.JobID, "s3_key", key, "error", err)
		c.compensate(ctx, job.JobID, key)
		uploadsTotal.WithLabelValues("dispatch_failed").Inc()
		return nil, &DispatchError{QueueMissing: errors.Is(err, ErrQueueMissing), Err: err}
	}

	log.Info("CSV upload completed",
		"job_id", job.JobID,
		"s3_key", key,
		"total_rows", res.RowCount,
	)
	uploadsTotal.WithLabelValues("accepted").Inc()
	return &SubmitResult{JobID: job.JobID, RowCount: res.RowCount}, nil
}

// Reprocess republishes the identical queue message for an existing owned
// job without re-validating or re-uploading. Nothing new is created, so a
// publish failure needs no rollback.
func (c *Coordinator) Reprocess(ctx context.Context, userID string, jobID int64) (*model.Job, error) {
	job, err := c.ledger.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	if _, err := c.queue.Publish(ctx, JobMessage{JobID: job.JobID, S3Key: job.S3ObjectKey}); err != nil {
		logging.FromContext(ctx).Error("reprocess publish failed",
			"job_id", job.JobID, "s3_key", job.S3ObjectKey, "error", err)
		return nil, &DispatchError{QueueMissing: errors.Is(err, ErrQueueMissing), Err: err}
	}

	logging.FromContext(ctx).Info("job republished",
		"job_id", job.JobID, "s3_key", job.S3ObjectKey)
	return job, nil
}

// compensate undoes the ledger insert and the blob write after a publish
// failure. Each delete is attempted exactly once; failures are logged and
// never escalate the response beyond the dispatch error itself.
func (c *Coordinator) compensate(ctx context.Context, jobID int64, key string) {
	uploadRollbacksTotal.Inc()
	log := logging.FromContext(ctx)

	if err := c.store.DeleteJob(ctx, jobID); err != nil {
		log.Error("rollback: failed to delete job row", "job_id", jobID, "error", err)
	} else {
		log.Info("rollback: job row deleted", "job_id", jobID)
	}

	c.discardBlob(ctx, key)
}

func (c *Coordinator) discardBlob(ctx context.Context, key string) {
	log := logging.FromContext(ctx)
	if err := c.blobs.Delete(ctx, key); err != nil {
		log.Error("rollback: failed to delete blob", "s3_key", key, "error", err)
	} else {
		log.Info("rollback: blob deleted", "s3_key", key)
	}
}

// blobKey builds the storage key for an upload:
// uploads/{owner}/{timestamp}-{short random}-{sanitized filename}.
// The timestamp plus disambiguator keeps keys unique even for retries of
// the same filename.
func blobKey(userID, filename string) string {
	ts := time.Now().UTC().Format("20060102-150405")
	short := uuid.NewString()[:8]
	return fmt.Sprintf("uploads/%s/%s-%s-%s", userID, ts, short, sanitizeFilename(filename))
}
