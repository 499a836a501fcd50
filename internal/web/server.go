// Package web is the HTTP surface of the ingestion API: upload, job
// lifecycle, and the read-side endpoints the review UI consumes.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/rpdevelops/data-ingestion-api/internal/config"
	"github.com/rpdevelops/data-ingestion-api/internal/ingest"
	"github.com/rpdevelops/data-ingestion-api/internal/model"
	"github.com/rpdevelops/data-ingestion-api/internal/store"
	"github.com/rpdevelops/data-ingestion-api/internal/web/middleware"
)

// Repository is the read-and-review side of the store the handlers use.
// *store.Store satisfies it.
type Repository interface {
	Ping(ctx context.Context) error
	ListJobs(ctx context.Context, userID string) ([]model.Job, error)
	ListJobStaging(ctx context.Context, userID string, jobID int64) ([]model.Staging, error)
	ListIssues(ctx context.Context, userID string) (*store.IssueSummary, error)
	ListJobIssues(ctx context.Context, userID string, jobID int64) (*store.IssueSummary, error)
	ResolveIssue(ctx context.Context, userID string, issueID int64, comment *string) (*model.Issue, error)
	UpdateStaging(ctx context.Context, userID string, stagingID int64, upd store.StagingUpdate) (*model.Staging, error)
	ListContacts(ctx context.Context, userID string) ([]model.Contact, error)
	GetContactByEmail(ctx context.Context, userID, email string) (*model.Contact, error)
}

// Server wires the router, the upload coordinator, and the repositories.
type Server struct {
	cfg         *config.Config
	coordinator *ingest.Coordinator
	store       Repository
	auth        *middleware.CognitoAuth
	router      *chi.Mux
}

func NewServer(cfg *config.Config, coordinator *ingest.Coordinator, st Repository, auth *middleware.CognitoAuth) *Server {
	s := &Server{
		cfg:         cfg,
		coordinator: coordinator,
		store:       st,
		auth:        auth,
		router:      chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(60 * time.Second))
	s.router.Use(middleware.Metrics)

	s.router.Use(cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	// Everything else requires a verified Cognito token.
	s.router.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware())

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.With(middleware.RequireGroup(middleware.GroupUploader)).
				Post("/upload", s.handleUpload)
			r.With(middleware.RequireGroup(middleware.GroupUploader)).
				Post("/{jobID}/reprocess", s.handleReprocess)
			r.With(middleware.RequireGroup(middleware.GroupEditor)).
				Delete("/{jobID}", s.handleCancelJob)
			r.Get("/{jobID}/staging", s.handleListJobStaging)
		})

		r.Route("/issues", func(r chi.Router) {
			r.Get("/", s.handleListIssues)
			r.Get("/job/{jobID}", s.handleListJobIssues)
			r.With(middleware.RequireGroup(middleware.GroupEditor)).
				Put("/{issueID}/resolve", s.handleResolveIssue)
		})

		r.With(middleware.RequireGroup(middleware.GroupEditor)).
			Put("/staging/{stagingID}", s.handleUpdateStaging)

		r.Get("/contacts", s.handleListContacts)
	})
}

// Handler returns the configured router for the HTTP server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth reports liveness plus database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}
