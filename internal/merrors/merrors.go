// Package merrors is Maestro's domain error type, generalized from
// tako's internal/errors.TakoError: a code, a message, and an optional
// wrapped cause. Maestro additionally carries the HTTP status and
// problem+json slug the boundary layer needs, so every domain error maps to
// a response without a second lookup table.
package merrors

import "fmt"

// Slug is one of the problem+json type slugs in spec §6.
type Slug string

const (
	SlugWorkflowNotFound         Slug = "workflow-not-found"
	SlugRevisionNotFound         Slug = "workflow-revision-not-found"
	SlugExecutionNotFound        Slug = "execution-not-found"
	SlugInvalidRevision          Slug = "invalid-workflow-revision"
	SlugValidationFailed         Slug = "workflow-validation-failed"
	SlugAlreadyExists            Slug = "workflow-already-exists"
	SlugActiveRevisionConflict   Slug = "active-revision-conflict"
	SlugOptimisticLockConflict   Slug = "optimistic-lock-conflict"
	SlugParameterValidationError Slug = "workflow-parameter-validation-error"
	SlugBadRequest               Slug = "bad-request"
	SlugInternal                 Slug = "internal-server-error"
)

// httpStatus is the fixed mapping from slug to HTTP status, per spec §6.
var httpStatus = map[Slug]int{
	SlugWorkflowNotFound:         404,
	SlugRevisionNotFound:         404,
	SlugExecutionNotFound:        404,
	SlugInvalidRevision:          400,
	SlugValidationFailed:         400,
	SlugAlreadyExists:            409,
	SlugActiveRevisionConflict:   409,
	SlugOptimisticLockConflict:   409,
	SlugParameterValidationError: 400,
	SlugBadRequest:               400,
	SlugInternal:                 500,
}

// Error is Maestro's error type for every domain-level failure that must
// cross the HTTP boundary as a specific problem+json response.
type Error struct {
	Slug    Slug
	Message string
	Err     error

	// InvalidParams carries parameter-validation violations (spec §6's
	// "invalidParams" extension member).
	InvalidParams []ParamError

	// Field/RejectedValue carry model-validation details (spec §6's
	// "field"/"rejectedValue" extension members).
	Field         string
	RejectedValue any
}

// ParamError is one violation reported by the parameter validator (spec
// §4.2).
type ParamError struct {
	Name     string `json:"name"`
	Reason   string `json:"reason"`
	Provided any    `json:"provided"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Slug, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Slug, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the fixed HTTP status for e's slug.
func (e *Error) Status() int {
	if s, ok := httpStatus[e.Slug]; ok {
		return s
	}
	return 500
}

// New constructs a bare domain error.
func New(slug Slug, message string) *Error {
	return &Error{Slug: slug, Message: message}
}

// Wrap constructs a domain error with an underlying cause.
func Wrap(slug Slug, message string, err error) *Error {
	return &Error{Slug: slug, Message: message, Err: err}
}

// WithParams attaches parameter-validation errors and returns e for
// chaining.
func (e *Error) WithParams(errs []ParamError) *Error {
	e.InvalidParams = errs
	return e
}
