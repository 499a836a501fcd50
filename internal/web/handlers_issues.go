package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rpdevelops/data-ingestion-api/internal/web/middleware"
)

// handleListIssues returns every issue across the caller's jobs, each
// with its affected staging rows, plus resolution counts.
func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	summary, err := s.store.ListIssues(r.Context(), principal.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleListJobIssues returns the issues of one job.
func (s *Server) handleListJobIssues(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	jobID, ok := jobIDParam(w, r)
	if !ok {
		return
	}

	summary, err := s.store.ListJobIssues(r.Context(), principal.UserID, jobID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleResolveIssue marks one issue as resolved with an optional comment.
func (s *Server) handleResolveIssue(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	raw := chi.URLParam(r, "issueID")
	issueID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || issueID < 1 {
		writeError(w, http.StatusBadRequest, "issue id must be a positive integer", "bad_request")
		return
	}

	// The body is optional. ContentLength is unreliable for chunked
	// requests, so decode unconditionally and treat EOF as no body.
	var body struct {
		Comment *string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "malformed JSON body", "bad_request")
		return
	}

	issue, err := s.store.ResolveIssue(r.Context(), principal.UserID, issueID, body.Comment)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, issue)
}
