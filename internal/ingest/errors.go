package ingest

// errors.go defines the typed error taxonomy for the admission pipeline and
// the upload protocol. The web layer maps these to HTTP status codes:
//
//	ValidationError      -> 400 (client-fixable, never retried)
//	DuplicateUploadError -> 409
//	ErrNotFound          -> 404 (missing and foreign jobs are indistinguishable)
//	DeleteNotAllowedError-> 400
//	DependencyError      -> 500 (failure before queue publish, no rollback)
//	DispatchError        -> 503 (publish failure after ledger write, rolled back)

import (
	"errors"
	"fmt"

	"github.com/rpdevelops/data-ingestion-api/internal/model"
)

// Machine-readable validation codes. Messages are for humans; clients
// branch on the code.
const (
	CodeInvalidExtension       = "INVALID_EXTENSION"
	CodeEmptyFile              = "EMPTY_FILE"
	CodeFileTooLarge           = "FILE_TOO_LARGE"
	CodeUnreadableContent      = "UNREADABLE_CONTENT"
	CodeNoContent              = "NO_CONTENT"
	CodeNoRows                 = "NO_ROWS"
	CodeNoDataRows             = "NO_DATA_ROWS"
	CodeHeaderDetectionFailed  = "HEADER_DETECTION_FAILED"
	CodeMissingRequiredColumns = "MISSING_REQUIRED_COLUMNS"
)

// ValidationError is a client-fixable admission failure.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// DuplicateUploadError is returned when the owner already has a job for the
// same filename.
type DuplicateUploadError struct {
	Filename string
}

func (e *DuplicateUploadError) Error() string {
	return fmt.Sprintf("file %q has already been imported, use a different filename", e.Filename)
}

// ErrNotFound is returned for lookups of jobs, staging rows, or contacts
// that do not exist or belong to another owner. The two cases are
// deliberately indistinguishable to prevent enumeration.
var ErrNotFound = errors.New("not found or access denied")

// ErrFilenameTaken is returned by the store when the (owner, filename)
// unique constraint rejects an insert. It closes the window between the
// coordinator's duplicate pre-check and the ledger write.
var ErrFilenameTaken = errors.New("filename already registered for this owner")

// ErrQueueMissing marks a publish failure caused by the queue resource
// itself being absent, which indicates a deployment misconfiguration
// rather than a transient fault.
var ErrQueueMissing = errors.New("queue does not exist or is not accessible")

// DeleteNotAllowedError is returned when a job's current status makes it
// ineligible for cancellation.
type DeleteNotAllowedError struct {
	Status model.JobStatus
}

func (e *DeleteNotAllowedError) Error() string {
	return fmt.Sprintf("job cannot be cancelled while status is %s", e.Status)
}

// Saga stages for DependencyError.
const (
	StageDuplicateCheck = "duplicate_check"
	StageStorageWrite   = "storage_write"
	StageJobPersist     = "job_persist"
)

// DependencyError is an infrastructure failure before the queue publish
// step. Nothing is rolled back: a storage_write failure leaves no state,
// and a job_persist failure leaves only an orphaned blob, which is logged
// for manual cleanup.
type DependencyError struct {
	Stage string
	Err   error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("upload failed at %s: %v", e.Stage, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// DispatchError is a queue publish failure after the job row was written.
// The coordinator attempts compensation before returning it; QueueMissing
// distinguishes an absent queue resource from other publish failures.
type DispatchError struct {
	QueueMissing bool
	Err          error
}

func (e *DispatchError) Error() string {
	if e.QueueMissing {
		return fmt.Sprintf("queue unavailable, upload rolled back: %v", e.Err)
	}
	return fmt.Sprintf("failed to publish job message, upload rolled back: %v", e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
