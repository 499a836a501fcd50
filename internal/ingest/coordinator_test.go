package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rpdevelops/data-ingestion-api/internal/model"
)

// fakeStore is an in-memory Store with per-method fault injection.
type fakeStore struct {
	jobs   map[int64]*model.Job
	nextID int64

	insertErr  error
	findErr    error
	deleteErr  error
	cascadeErr error

	cascadeCalls []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: map[int64]*model.Job{}, nextID: 1}
}

func (f *fakeStore) InsertJob(_ context.Context, job *model.Job) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, existing := range f.jobs {
		if existing.UserID == job.UserID && existing.OriginalFilename == job.OriginalFilename {
			return ErrFilenameTaken
		}
	}
	job.JobID = f.nextID
	f.nextID++
	clone := *job
	f.jobs[job.JobID] = &clone
	return nil
}

func (f *fakeStore) GetJob(_ context.Context, userID string, jobID int64) (*model.Job, error) {
	job, ok := f.jobs[jobID]
	if !ok || job.UserID != userID {
		return nil, ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (f *fakeStore) FindJobByFilename(_ context.Context, userID, filename string) (*model.Job, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, job := range f.jobs {
		if job.UserID == userID && job.OriginalFilename == filename {
			clone := *job
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListJobs(_ context.Context, userID string) ([]model.Job, error) {
	var out []model.Job
	for _, job := range f.jobs {
		if job.UserID == userID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteJob(_ context.Context, jobID int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.jobs, jobID)
	return nil
}

func (f *fakeStore) DeleteJobCascade(_ context.Context, jobID int64) error {
	if f.cascadeErr != nil {
		return f.cascadeErr
	}
	f.cascadeCalls = append(f.cascadeCalls, jobID)
	delete(f.jobs, jobID)
	return nil
}

// fakeBlobs records writes and deletes.
type fakeBlobs struct {
	objects map[string][]byte
	putErr  error
	delErr  error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}}
}

func (f *fakeBlobs) Put(_ context.Context, key string, body []byte, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = body
	return nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.objects, key)
	return nil
}

// fakeQueue records published messages.
type fakeQueue struct {
	messages   []JobMessage
	publishErr error
}

func (f *fakeQueue) Publish(_ context.Context, msg JobMessage) (string, error) {
	if f.publishErr != nil {
		return "", f.publishErr
	}
	f.messages = append(f.messages, msg)
	return "msg-1", nil
}

func newTestCoordinator() (*Coordinator, *fakeStore, *fakeBlobs, *fakeQueue) {
	st := newFakeStore()
	blobs := newFakeBlobs()
	q := &fakeQueue{}
	return NewCoordinator(st, blobs, q, 0), st, blobs, q
}

func candidate() UploadCandidate {
	return UploadCandidate{
		UserID:   "user-1",
		Filename: "contacts.csv",
		Content:  []byte(validCSV),
	}
}

func TestSubmitSuccess(t *testing.T) {
	c, st, blobs, q := newTestCoordinator()

	res, err := c.Submit(context.Background(), candidate())
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.JobID != 1 || res.RowCount != 2 {
		t.Errorf("result = %+v, want job 1 with 2 rows", res)
	}

	job := st.jobs[res.JobID]
	if job == nil {
		t.Fatal("job row not persisted")
	}
	if job.Status != model.StatusPending {
		t.Errorf("status = %s, want PENDING", job.Status)
	}
	if job.TotalRows != 2 {
		t.Errorf("TotalRows = %d, want 2", job.TotalRows)
	}

	if len(blobs.objects) != 1 {
		t.Fatalf("blob count = %d, want 1", len(blobs.objects))
	}
	if job.S3ObjectKey == "" || blobs.objects[job.S3ObjectKey] == nil {
		t.Errorf("job key %q does not match stored blob", job.S3ObjectKey)
	}
	if !strings.HasPrefix(job.S3ObjectKey, "uploads/user-1/") {
		t.Errorf("key = %q, want uploads/user-1/ prefix", job.S3ObjectKey)
	}

	if len(q.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(q.messages))
	}
	if q.messages[0].JobID != res.JobID || q.messages[0].S3Key != job.S3ObjectKey {
		t.Errorf("message = %+v, want job %d with key %q", q.messages[0], res.JobID, job.S3ObjectKey)
	}
}

func TestSubmitRejectsBeforeSideEffects(t *testing.T) {
	c, st, blobs, q := newTestCoordinator()

	_, err := c.Submit(context.Background(), UploadCandidate{
		UserID:   "user-1",
		Filename: "contacts.txt",
		Content:  []byte(validCSV),
	})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}

	if len(st.jobs) != 0 || len(blobs.objects) != 0 || len(q.messages) != 0 {
		t.Error("rejected upload left side effects behind")
	}
}

func TestSubmitDuplicateFilename(t *testing.T) {
	c, st, blobs, _ := newTestCoordinator()

	if _, err := c.Submit(context.Background(), candidate()); err != nil {
		t.Fatalf("first Submit() error: %v", err)
	}

	_, err := c.Submit(context.Background(), candidate())
	var dupErr *DuplicateUploadError
	if !errors.As(err, &dupErr) {
		t.Fatalf("error = %v, want DuplicateUploadError", err)
	}
	if dupErr.Filename != "contacts.csv" {
		t.Errorf("Filename = %q", dupErr.Filename)
	}

	// The second attempt must not stack more state on the first.
	if len(st.jobs) != 1 {
		t.Errorf("job count = %d, want 1", len(st.jobs))
	}
	if len(blobs.objects) != 1 {
		t.Errorf("blob count = %d, want 1", len(blobs.objects))
	}
}

func TestSubmitSameFilenameDifferentOwners(t *testing.T) {
	c, _, _, _ := newTestCoordinator()

	if _, err := c.Submit(context.Background(), candidate()); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	other := candidate()
	other.UserID = "user-2"
	if _, err := c.Submit(context.Background(), other); err != nil {
		t.Errorf("Submit() for a different owner rejected: %v", err)
	}
}

func TestSubmitBlobFailure(t *testing.T) {
	c, st, blobs, q := newTestCoordinator()
	blobs.putErr = errors.New("bucket unavailable")

	_, err := c.Submit(context.Background(), candidate())
	var depErr *DependencyError
	if !errors.As(err, &depErr) {
		t.Fatalf("error = %v, want DependencyError", err)
	}
	if depErr.Stage != StageStorageWrite {
		t.Errorf("Stage = %q, want %q", depErr.Stage, StageStorageWrite)
	}
	if len(st.jobs) != 0 || len(q.messages) != 0 {
		t.Error("failed blob write left state behind")
	}
}

func TestSubmitPersistFailureLeavesOrphanBlob(t *testing.T) {
	c, st, blobs, q := newTestCoordinator()
	st.insertErr = errors.New("db down")

	_, err := c.Submit(context.Background(), candidate())
	var depErr *DependencyError
	if !errors.As(err, &depErr) {
		t.Fatalf("error = %v, want DependencyError", err)
	}
	if depErr.Stage != StageJobPersist {
		t.Errorf("Stage = %q, want %q", depErr.Stage, StageJobPersist)
	}
	// The blob stays for manual cleanup; nothing references it.
	if len(blobs.objects) != 1 {
		t.Errorf("blob count = %d, want orphan kept", len(blobs.objects))
	}
	if len(q.messages) != 0 {
		t.Error("message published despite persist failure")
	}
}

func TestSubmitInsertRaceDiscardsBlob(t *testing.T) {
	c, st, blobs, _ := newTestCoordinator()

	// A concurrent upload wins between the pre-check and the insert:
	// the pre-check sees nothing, the insert hits the unique index.
	st.insertErr = ErrFilenameTaken

	_, err := c.Submit(context.Background(), candidate())
	var dupErr *DuplicateUploadError
	if !errors.As(err, &dupErr) {
		t.Fatalf("error = %v, want DuplicateUploadError", err)
	}
	if len(blobs.objects) != 0 {
		t.Error("racing upload's blob was not discarded")
	}
}

func TestSubmitPublishFailureRollsBack(t *testing.T) {
	tests := []struct {
		name        string
		publishErr  error
		wantMissing bool
	}{
		{
			name:        "queue missing",
			publishErr:  errors.Join(ErrQueueMissing, errors.New("404")),
			wantMissing: true,
		},
		{
			name:        "transient publish failure",
			publishErr:  errors.New("throttled"),
			wantMissing: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, st, blobs, q := newTestCoordinator()
			q.publishErr = tt.publishErr

			_, err := c.Submit(context.Background(), candidate())
			var dispErr *DispatchError
			if !errors.As(err, &dispErr) {
				t.Fatalf("error = %v, want DispatchError", err)
			}
			if dispErr.QueueMissing != tt.wantMissing {
				t.Errorf("QueueMissing = %v, want %v", dispErr.QueueMissing, tt.wantMissing)
			}

			// Full compensation: no job row, no blob.
			if len(st.jobs) != 0 {
				t.Errorf("job rows = %d, want 0 after rollback", len(st.jobs))
			}
			if len(blobs.objects) != 0 {
				t.Errorf("blobs = %d, want 0 after rollback", len(blobs.objects))
			}
		})
	}
}

func TestSubmitRollbackFailuresDoNotEscalate(t *testing.T) {
	c, st, blobs, q := newTestCoordinator()
	q.publishErr = errors.New("boom")
	st.deleteErr = errors.New("delete failed")
	blobs.delErr = errors.New("delete failed")

	_, err := c.Submit(context.Background(), candidate())
	var dispErr *DispatchError
	if !errors.As(err, &dispErr) {
		t.Fatalf("error = %v, want DispatchError even when compensation fails", err)
	}
}

func TestReprocess(t *testing.T) {
	c, _, _, q := newTestCoordinator()

	res, err := c.Submit(context.Background(), candidate())
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	job, err := c.Reprocess(context.Background(), "user-1", res.JobID)
	if err != nil {
		t.Fatalf("Reprocess() error: %v", err)
	}
	if len(q.messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(q.messages))
	}
	if q.messages[1] != q.messages[0] {
		t.Errorf("reprocess message %+v differs from original %+v", q.messages[1], q.messages[0])
	}
	if job.S3ObjectKey != q.messages[1].S3Key {
		t.Errorf("returned key %q does not match message %q", job.S3ObjectKey, q.messages[1].S3Key)
	}
}

func TestReprocessOwnershipAndMissing(t *testing.T) {
	c, _, _, _ := newTestCoordinator()

	res, err := c.Submit(context.Background(), candidate())
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if _, err := c.Reprocess(context.Background(), "user-2", res.JobID); !IsNotFound(err) {
		t.Errorf("foreign job error = %v, want not found", err)
	}
	if _, err := c.Reprocess(context.Background(), "user-1", 404); !IsNotFound(err) {
		t.Errorf("missing job error = %v, want not found", err)
	}
}

func TestReprocessPublishFailureNoRollback(t *testing.T) {
	c, st, blobs, q := newTestCoordinator()

	res, err := c.Submit(context.Background(), candidate())
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	q.publishErr = errors.New("throttled")
	_, err = c.Reprocess(context.Background(), "user-1", res.JobID)
	var dispErr *DispatchError
	if !errors.As(err, &dispErr) {
		t.Fatalf("error = %v, want DispatchError", err)
	}

	// Reprocess creates nothing, so nothing may be torn down.
	if len(st.jobs) != 1 || len(blobs.objects) != 1 {
		t.Error("reprocess failure removed existing job state")
	}
}

func TestBlobKeySanitizesFilename(t *testing.T) {
	key := blobKey("user-1", "my contacts/2024.csv")
	if strings.Contains(key, " ") {
		t.Errorf("key %q contains a space", key)
	}
	if strings.Count(key, "/") != 2 {
		t.Errorf("key %q should only have the two structural separators", key)
	}
	if !strings.HasSuffix(key, "my_contacts_2024.csv") {
		t.Errorf("key %q does not end with the sanitized filename", key)
	}
}
