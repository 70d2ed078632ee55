package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/maestro-org/maestro/internal/domain"
	"github.com/maestro-org/maestro/internal/merrors"
	"github.com/maestro-org/maestro/internal/nanoid"
	"github.com/maestro-org/maestro/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleSubmitExecution(w http.ResponseWriter, r *http.Request) {
	var req executionSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, s.Logger, merrors.Wrap(merrors.SlugBadRequest, "malformed request body", err))
		return
	}

	revID := domain.WorkflowRevisionID{Namespace: req.Namespace, WorkflowID: req.WorkflowID, Version: req.Version}
	executionID, err := s.Coordinator.Execute(r.Context(), revID, req.Parameters)
	if err != nil {
		writeProblem(w, s.Logger, err)
		return
	}

	header, _, err := s.Executions.FindByID(r.Context(), executionID)
	if err != nil || header == nil {
		writeProblem(w, s.Logger, merrors.Wrap(merrors.SlugInternal, "failed to load freshly created execution", err))
		return
	}

	writeJSON(w, http.StatusOK, executionSubmitResponse{
		ExecutionID:     header.ExecutionID,
		Status:          header.Status,
		RevisionID:      header.RevisionID,
		InputParameters: header.InputParameters,
		StartedAt:       header.StartedAt.Format(time.RFC3339Nano),
		Links:           links{"self": "/api/executions/" + header.ExecutionID},
	})
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	executionID := mux.Vars(r)["executionId"]
	if !nanoid.IsValidShape(executionID) {
		writeProblem(w, s.Logger, merrors.New(merrors.SlugBadRequest, "execution id is not a valid NanoID"))
		return
	}

	header, results, err := s.Executions.FindByID(r.Context(), executionID)
	if err != nil {
		writeProblem(w, s.Logger, err)
		return
	}
	if header == nil {
		writeProblem(w, s.Logger, merrors.New(merrors.SlugExecutionNotFound, "execution not found"))
		return
	}

	writeJSON(w, http.StatusOK, toExecutionDetail(*header, results))
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ns, id := vars["ns"], vars["id"]
	q := r.URL.Query()

	filter := storage.ExecutionFilter{}
	if v := q.Get("version"); v != "" {
		version, err := strconv.Atoi(v)
		if err != nil {
			writeProblem(w, s.Logger, merrors.New(merrors.SlugBadRequest, "version must be an integer"))
			return
		}
		filter.Version = &version
	}
	if v := q.Get("status"); v != "" {
		status := domain.ExecutionStatus(v)
		filter.Status = &status
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeProblem(w, s.Logger, merrors.New(merrors.SlugBadRequest, "limit must be an integer"))
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			writeProblem(w, s.Logger, merrors.New(merrors.SlugBadRequest, "offset must be an integer"))
			return
		}
		filter.Offset = offset
	}

	revs, err := s.Revisions.List(r.Context(), ns, id, false)
	if err != nil {
		writeProblem(w, s.Logger, err)
		return
	}
	if len(revs) == 0 {
		writeProblem(w, s.Logger, merrors.New(merrors.SlugWorkflowNotFound, "no such workflow"))
		return
	}

	page, err := s.Executions.FindByWorkflow(r.Context(), ns, id, filter)
	if err != nil {
		writeProblem(w, s.Logger, err)
		return
	}

	summaries := make([]executionSummaryResponse, 0, len(page.Executions))
	for _, e := range page.Executions {
		summaries = append(summaries, toExecutionSummary(e))
	}

	writeJSON(w, http.StatusOK, executionListResponse{
		Executions: summaries,
		Pagination: paginationResponse{Total: page.Total, Limit: page.Limit, Offset: page.Offset, HasMore: page.HasMore},
		Links:      links{"self": "/api/workflows/" + ns + "/" + id + "/executions"},
	})
}
