// Package httpapi is C8, the HTTP boundary: gorilla/mux routing (the same
// router library tako's e2e mock GitHub server uses) over the coordinator and
// the revision/execution stores. Handlers decode the request, call a
// collaborator, and encode the response; all domain errors funnel through
// writeProblem, per spec §4.6.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/maestro-org/maestro/internal/coordinator"
	"github.com/maestro-org/maestro/internal/steptree"
	"github.com/maestro-org/maestro/internal/storage"
)

// Server holds the HTTP boundary's collaborators.
type Server struct {
	Coordinator *coordinator.Coordinator
	Revisions   storage.RevisionStore
	Executions  storage.ExecutionStore
	Registry    *steptree.Registry
	Logger      *slog.Logger
}

// NewRouter builds the full route table of spec §6.
func NewRouter(s *Server) *mux.Router {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.Registry == nil {
		s.Registry = steptree.Default
	}

	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/api/workflows", s.handleCreateInitial).Methods(http.MethodPost)
	r.HandleFunc("/api/workflows/{ns}/{id}", s.handleCreateNextRevision).Methods(http.MethodPost)
	r.HandleFunc("/api/workflows/{ns}/{id}", s.handleListRevisions).Methods(http.MethodGet)
	r.HandleFunc("/api/workflows/{ns}/{id}", s.handleDeleteWorkflow).Methods(http.MethodDelete)
	// Registered ahead of the {v} routes below: without its numeric pattern
	// {v} would be an unconstrained segment matcher, and since gorilla/mux
	// matches in registration order, without that pattern (or this ordering)
	// "executions" would be captured as a version by
	// handleGetRevision/handleUpdateRevision/etc.
	r.HandleFunc("/api/workflows/{ns}/{id}/executions", s.handleListExecutions).Methods(http.MethodGet)
	r.HandleFunc("/api/workflows/{ns}/{id}/{v:[0-9]+}", s.handleGetRevision).Methods(http.MethodGet)
	r.HandleFunc("/api/workflows/{ns}/{id}/{v:[0-9]+}", s.handleUpdateRevision).Methods(http.MethodPut)
	r.HandleFunc("/api/workflows/{ns}/{id}/{v:[0-9]+}", s.handleDeleteRevision).Methods(http.MethodDelete)
	r.HandleFunc("/api/workflows/{ns}/{id}/{v:[0-9]+}/activate", s.handleSetActive(true)).Methods(http.MethodPost)
	r.HandleFunc("/api/workflows/{ns}/{id}/{v:[0-9]+}/deactivate", s.handleSetActive(false)).Methods(http.MethodPost)

	r.HandleFunc("/api/executions", s.handleSubmitExecution).Methods(http.MethodPost)
	r.HandleFunc("/api/executions/{executionId}", s.handleGetExecution).Methods(http.MethodGet)

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Logger.Info("http request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
