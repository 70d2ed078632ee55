package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/maestro-org/maestro/internal/merrors"
	"github.com/maestro-org/maestro/internal/storage"
)

// problem is an RFC 7807 application/problem+json body, with Maestro's
// two extension member groups from spec §6: invalidParams (parameter
// validation) and field/rejectedValue (model validation).
type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`

	InvalidParams []merrors.ParamError `json:"invalidParams,omitempty"`
	Field         string               `json:"field,omitempty"`
	RejectedValue any                  `json:"rejectedValue,omitempty"`
}

// writeProblem maps err to a domain *merrors.Error (translating known
// storage sentinels along the way) and writes the corresponding
// application/problem+json response. Every HTTP handler's error path funnels
// through here, per spec §4.6's "single mapper" design.
func writeProblem(w http.ResponseWriter, logger *slog.Logger, err error) {
	domainErr := asDomainError(err)

	if domainErr.Slug == merrors.SlugInternal {
		logger.Error("httpapi: internal error", "error", err)
	}

	body := problem{
		Type:          "/problems/" + string(domainErr.Slug),
		Title:         string(domainErr.Slug),
		Status:        domainErr.Status(),
		Detail:        domainErr.Message,
		InvalidParams: domainErr.InvalidParams,
		Field:         domainErr.Field,
		RejectedValue: domainErr.RejectedValue,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(body.Status)
	_ = json.NewEncoder(w).Encode(body)
}

// asDomainError coerces any error reaching the boundary into a *merrors.Error,
// translating the storage package's sentinels into their problem-taxonomy
// slugs. Anything unrecognized becomes internal-server-error.
func asDomainError(err error) *merrors.Error {
	var domainErr *merrors.Error
	if errors.As(err, &domainErr) {
		return domainErr
	}

	switch {
	case errors.Is(err, storage.ErrWorkflowNotFound):
		return merrors.Wrap(merrors.SlugWorkflowNotFound, "workflow not found", err)
	case errors.Is(err, storage.ErrRevisionNotFound):
		return merrors.Wrap(merrors.SlugRevisionNotFound, "revision not found", err)
	case errors.Is(err, storage.ErrExecutionNotFound):
		return merrors.Wrap(merrors.SlugExecutionNotFound, "execution not found", err)
	case errors.Is(err, storage.ErrAlreadyExists):
		return merrors.Wrap(merrors.SlugAlreadyExists, "workflow already exists", err)
	case errors.Is(err, storage.ErrActiveRevisionConflict):
		return merrors.Wrap(merrors.SlugActiveRevisionConflict, "active revision conflict", err)
	}

	var lockErr *storage.OptimisticLockError
	if errors.As(err, &lockErr) {
		return merrors.Wrap(merrors.SlugOptimisticLockConflict, lockErr.Error(), err)
	}

	return merrors.Wrap(merrors.SlugInternal, "internal error", err)
}
