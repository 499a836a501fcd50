package web

import (
	"net/http"

	"github.com/rpdevelops/data-ingestion-api/internal/web/middleware"
)

// handleListContacts returns the caller's promoted contacts. With an
// email query parameter it looks up a single contact instead.
func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	if email := r.URL.Query().Get("email"); email != "" {
		contact, err := s.store.GetContactByEmail(r.Context(), principal.UserID, email)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, contact)
		return
	}

	contacts, err := s.store.ListContacts(r.Context(), principal.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"contacts": contacts,
		"total":    len(contacts),
	})
}
