package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rpdevelops/data-ingestion-api/internal/ingest"
	"github.com/rpdevelops/data-ingestion-api/internal/web/middleware"
)

// handleUpload accepts a multipart CSV upload under the "file" field,
// runs it through admission and the persistence protocol, and answers
// 201 with the new job.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	// The request cap sits above the admission ceiling so an oversized
	// file is rejected with the typed too-large error instead of a
	// transport failure.
	maxRequest := s.cfg.Upload.MaxFileSize * 2
	r.Body = http.MaxBytesReader(w, r.Body, maxRequest)

	if err := r.ParseMultipartForm(maxRequest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("request body exceeds %d bytes", maxRequest), "request_too_large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form data", "bad_request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `missing form file field "file"`, "bad_request")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read uploaded file", "bad_request")
		return
	}

	result, err := s.coordinator.Submit(r.Context(), ingest.UploadCandidate{
		UserID:   principal.UserID,
		Filename: header.Filename,
		Content:  content,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"job_id":     result.JobID,
		"message":    "file accepted for processing",
		"filename":   header.Filename,
		"total_rows": result.RowCount,
	})
}

// handleListJobs returns the caller's jobs, newest first.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	jobs, err := s.store.ListJobs(r.Context(), principal.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// handleReprocess re-publishes an existing job to the worker queue.
func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	jobID, ok := jobIDParam(w, r)
	if !ok {
		return
	}

	job, err := s.coordinator.Reprocess(r.Context(), principal.UserID, jobID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":  job.JobID,
		"message": "job queued for reprocessing",
		"s3_key":  job.S3ObjectKey,
	})
}

// handleCancelJob deletes a job and everything attached to it. Only
// terminal or not-yet-started jobs can be deleted.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	jobID, ok := jobIDParam(w, r)
	if !ok {
		return
	}

	if err := s.coordinator.Ledger().Cancel(r.Context(), principal.UserID, jobID); err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":  jobID,
		"message": "job deleted",
	})
}

// handleListJobStaging returns the parsed rows of one job for review.
func (s *Server) handleListJobStaging(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	jobID, ok := jobIDParam(w, r)
	if !ok {
		return
	}

	rows, err := s.store.ListJobStaging(r.Context(), principal.UserID, jobID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"staging": rows,
		"total":   len(rows),
	})
}

// jobIDParam parses the {jobID} route parameter, writing a 400 on
// malformed input.
func jobIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "jobID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "job id must be a positive integer", "bad_request")
		return 0, false
	}
	return id, true
}
