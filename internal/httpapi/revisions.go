package httpapi

import (
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"github.com/maestro-org/maestro/internal/domain"
	"github.com/maestro-org/maestro/internal/merrors"
	"github.com/maestro-org/maestro/internal/steptree"
)

// idRe is the namespace/workflowId shape spec §3 requires.
var idRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

func writeYAML(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(status)
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	_ = enc.Encode(body)
}

func readBody(r *http.Request) (string, error) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func parseSourceFields(source string) map[string]any {
	var fields map[string]any
	if err := yaml.Unmarshal([]byte(source), &fields); err != nil {
		return map[string]any{}
	}
	return fields
}

func toRevision(doc steptree.Document) domain.WorkflowRevision {
	return domain.WorkflowRevision{
		ID:          domain.WorkflowRevisionID{Namespace: doc.Namespace, WorkflowID: doc.WorkflowID},
		Name:        doc.Name,
		Description: doc.Description,
		Parameters:  doc.Parameters,
		RootStep:    doc.RootStep,
	}
}

func (s *Server) handleCreateInitial(w http.ResponseWriter, r *http.Request) {
	source, err := readBody(r)
	if err != nil {
		writeProblem(w, s.Logger, merrors.Wrap(merrors.SlugBadRequest, "failed to read request body", err))
		return
	}

	doc, err := steptree.Decode(s.Registry, source)
	if err != nil {
		writeProblem(w, s.Logger, merrors.Wrap(merrors.SlugInvalidRevision, "invalid workflow document", err))
		return
	}
	if !idRe.MatchString(doc.Namespace) || !idRe.MatchString(doc.WorkflowID) {
		writeProblem(w, s.Logger, merrors.New(merrors.SlugInvalidRevision, "namespace and id must match [A-Za-z0-9_-]{1,100}"))
		return
	}

	created, err := s.Revisions.CreateInitial(r.Context(), toRevision(doc), source)
	if err != nil {
		writeProblem(w, s.Logger, err)
		return
	}

	w.Header().Set("Location", "/api/workflows/"+url.PathEscape(created.ID.Namespace)+"/"+url.PathEscape(created.ID.WorkflowID)+"/1")
	writeYAML(w, http.StatusCreated, newRevisionEnvelope(domain.WorkflowRevisionWithSource{WorkflowRevision: created, SourceDoc: source}, parseSourceFields(source)))
}

func (s *Server) handleCreateNextRevision(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ns, id := vars["ns"], vars["id"]

	source, err := readBody(r)
	if err != nil {
		writeProblem(w, s.Logger, merrors.Wrap(merrors.SlugBadRequest, "failed to read request body", err))
		return
	}

	doc, err := steptree.Decode(s.Registry, source)
	if err != nil {
		writeProblem(w, s.Logger, merrors.Wrap(merrors.SlugInvalidRevision, "invalid workflow document", err))
		return
	}
	if doc.Namespace != ns || doc.WorkflowID != id {
		writeProblem(w, s.Logger, merrors.New(merrors.SlugInvalidRevision, "document namespace/id does not match URL"))
		return
	}

	created, err := s.Revisions.CreateNextRevision(r.Context(), ns, id, toRevision(doc), source)
	if err != nil {
		writeProblem(w, s.Logger, err)
		return
	}

	w.Header().Set("Location", "/api/workflows/"+url.PathEscape(ns)+"/"+url.PathEscape(id)+"/"+strconv.Itoa(created.ID.Version))
	writeYAML(w, http.StatusCreated, newRevisionEnvelope(domain.WorkflowRevisionWithSource{WorkflowRevision: created, SourceDoc: source}, parseSourceFields(source)))
}

func (s *Server) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ns, id := vars["ns"], vars["id"]
	activeOnly := r.URL.Query().Get("active") == "true"

	revs, err := s.Revisions.List(r.Context(), ns, id, activeOnly)
	if err != nil {
		writeProblem(w, s.Logger, err)
		return
	}
	if activeOnly && len(revs) == 0 {
		writeProblem(w, s.Logger, merrors.New(merrors.SlugWorkflowNotFound, "no active revision for this workflow"))
		return
	}

	summaries := make([]revisionSummary, 0, len(revs))
	for _, rev := range revs {
		summaries = append(summaries, toRevisionSummary(rev))
	}
	writeYAML(w, http.StatusOK, revisionListResponse{Revisions: summaries})
}

func (s *Server) handleGetRevision(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseRevisionID(w, r)
	if !ok {
		return
	}

	withSrc, err := s.Revisions.FindByIDWithSource(r.Context(), id)
	if err != nil {
		writeProblem(w, s.Logger, err)
		return
	}
	if withSrc == nil {
		writeProblem(w, s.Logger, merrors.New(merrors.SlugRevisionNotFound, "revision not found"))
		return
	}
	writeYAML(w, http.StatusOK, newRevisionEnvelope(*withSrc, parseSourceFields(withSrc.SourceDoc)))
}

// updateEnvelope pulls just the optimistic-lock token out of an update
// request body; the rest of the document is handled by steptree.Decode.
type updateEnvelope struct {
	UpdatedAt time.Time `yaml:"updatedAt"`
}

func (s *Server) handleUpdateRevision(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseRevisionID(w, r)
	if !ok {
		return
	}

	source, err := readBody(r)
	if err != nil {
		writeProblem(w, s.Logger, merrors.Wrap(merrors.SlugBadRequest, "failed to read request body", err))
		return
	}

	doc, err := steptree.Decode(s.Registry, source)
	if err != nil {
		writeProblem(w, s.Logger, merrors.Wrap(merrors.SlugInvalidRevision, "invalid workflow document", err))
		return
	}
	if doc.Namespace != id.Namespace || doc.WorkflowID != id.WorkflowID {
		writeProblem(w, s.Logger, merrors.New(merrors.SlugInvalidRevision, "document namespace/id does not match URL"))
		return
	}

	var env updateEnvelope
	if err := yaml.Unmarshal([]byte(source), &env); err != nil || env.UpdatedAt.IsZero() {
		writeProblem(w, s.Logger, merrors.New(merrors.SlugInvalidRevision, "document missing required \"updatedAt\" field"))
		return
	}

	updated := toRevision(doc)
	updated.ID = id
	if err := s.Revisions.Update(r.Context(), id, updated, env.UpdatedAt); err != nil {
		writeProblem(w, s.Logger, err)
		return
	}

	withSrc, err := s.Revisions.FindByIDWithSource(r.Context(), id)
	if err != nil || withSrc == nil {
		writeProblem(w, s.Logger, merrors.Wrap(merrors.SlugInternal, "failed to reload updated revision", err))
		return
	}
	writeYAML(w, http.StatusOK, newRevisionEnvelope(*withSrc, parseSourceFields(source)))
}

func (s *Server) handleSetActive(desired bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.parseRevisionID(w, r)
		if !ok {
			return
		}

		header := r.Header.Get("X-Current-Updated-At")
		if header == "" {
			writeProblem(w, s.Logger, merrors.New(merrors.SlugBadRequest, "missing required X-Current-Updated-At header"))
			return
		}
		expected, err := time.Parse(time.RFC3339Nano, header)
		if err != nil {
			writeProblem(w, s.Logger, merrors.Wrap(merrors.SlugBadRequest, "X-Current-Updated-At is not a valid RFC3339 timestamp", err))
			return
		}

		if err := s.Revisions.SetActive(r.Context(), id, desired, expected); err != nil {
			writeProblem(w, s.Logger, err)
			return
		}

		withSrc, err := s.Revisions.FindByIDWithSource(r.Context(), id)
		if err != nil || withSrc == nil {
			writeProblem(w, s.Logger, merrors.Wrap(merrors.SlugInternal, "failed to reload revision", err))
			return
		}
		writeYAML(w, http.StatusOK, newRevisionEnvelope(*withSrc, parseSourceFields(withSrc.SourceDoc)))
	}
}

func (s *Server) handleDeleteRevision(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseRevisionID(w, r)
	if !ok {
		return
	}
	if err := s.Revisions.DeleteRevision(r.Context(), id); err != nil {
		writeProblem(w, s.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.Revisions.DeleteWorkflow(r.Context(), vars["ns"], vars["id"]); err != nil {
		writeProblem(w, s.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseRevisionID reads {ns}/{id}/{v} from the route, writing a bad-request
// problem and returning ok=false if v is not a valid version number.
func (s *Server) parseRevisionID(w http.ResponseWriter, r *http.Request) (domain.WorkflowRevisionID, bool) {
	vars := mux.Vars(r)
	version, err := strconv.Atoi(vars["v"])
	if err != nil || version < 1 {
		writeProblem(w, s.Logger, merrors.New(merrors.SlugBadRequest, "version must be a positive integer"))
		return domain.WorkflowRevisionID{}, false
	}
	return domain.WorkflowRevisionID{Namespace: vars["ns"], WorkflowID: vars["id"], Version: version}, true
}
