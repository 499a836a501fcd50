package web

// errors.go maps the error taxonomy of the ingest layer onto HTTP
// responses. Every error is logged with full detail server-side and
// returned to the client as a compact JSON body.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rpdevelops/data-ingestion-api/internal/ingest"
	"github.com/rpdevelops/data-ingestion-api/internal/logging"
)

// ErrorResponse is the JSON error shape of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondError translates err into a status code and JSON body:
//
//	ValidationError      -> 400
//	DeleteNotAllowedError-> 400
//	ErrNotFound          -> 404
//	DuplicateUploadError -> 409
//	DependencyError      -> 500
//	DispatchError        -> 503
//
// Anything unrecognized becomes a generic 500 without leaking details.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := ErrorResponse{Error: "internal server error"}

	var valErr *ingest.ValidationError
	var dupErr *ingest.DuplicateUploadError
	var delErr *ingest.DeleteNotAllowedError
	var depErr *ingest.DependencyError
	var dispErr *ingest.DispatchError

	switch {
	case errors.As(err, &valErr):
		status = http.StatusBadRequest
		body = ErrorResponse{Error: valErr.Message, Code: string(valErr.Code)}
	case errors.As(err, &dupErr):
		status = http.StatusConflict
		body = ErrorResponse{Error: dupErr.Error(), Code: "duplicate_upload"}
	case errors.Is(err, ingest.ErrNotFound):
		status = http.StatusNotFound
		body = ErrorResponse{Error: "resource not found", Code: "not_found"}
	case errors.As(err, &delErr):
		status = http.StatusBadRequest
		body = ErrorResponse{Error: delErr.Error(), Code: "delete_not_allowed"}
	case errors.As(err, &depErr):
		status = http.StatusInternalServerError
		body = ErrorResponse{
			Error: fmt.Sprintf("a dependency failed during %s", depErr.Stage),
			Code:  "dependency_failure",
		}
	case errors.As(err, &dispErr):
		status = http.StatusServiceUnavailable
		if dispErr.QueueMissing {
			body = ErrorResponse{
				Error: "the job queue does not exist; the upload was rolled back, check the queue configuration",
				Code:  "queue_missing",
			}
		} else {
			body = ErrorResponse{
				Error: "the upload was accepted but could not be queued; it has been rolled back, try again later",
				Code:  "dispatch_failure",
			}
		}
	}

	logging.FromContext(r.Context()).Error("request error",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)

	writeJSON(w, status, body)
}

// writeJSON writes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already out; nothing to do but log.
		slog.Error("encode response", "error", err)
	}
}

// writeError writes a bare error message without going through the
// taxonomy, for request-shape problems like a malformed body.
func writeError(w http.ResponseWriter, status int, msg string, code string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}
