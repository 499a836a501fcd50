package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rpdevelops/data-ingestion-api/internal/store"
	"github.com/rpdevelops/data-ingestion-api/internal/web/middleware"
)

// handleUpdateStaging applies a partial correction to one staging row.
// Only the contact fields and the review status can change.
func (s *Server) handleUpdateStaging(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	raw := chi.URLParam(r, "stagingID")
	stagingID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || stagingID < 1 {
		writeError(w, http.StatusBadRequest, "staging id must be a positive integer", "bad_request")
		return
	}

	var upd store.StagingUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body", "bad_request")
		return
	}
	if upd.Empty() {
		writeError(w, http.StatusBadRequest, "no updatable fields in body", "bad_request")
		return
	}
	if upd.Status != nil && !upd.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown staging status", "bad_request")
		return
	}

	row, err := s.store.UpdateStaging(r.Context(), principal.UserID, stagingID, upd)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, row)
}
