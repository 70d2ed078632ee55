// Package storage defines the C6 (revision) and C7 (execution) store
// interfaces the coordinator and HTTP boundary depend on. Concrete
// implementations live in the postgres and memstore subpackages; both are
// storage-agnostic collaborators from the coordinator's point of view.
package storage

import (
	"context"
	"time"

	"github.com/maestro-org/maestro/internal/domain"
)

// ExecutionFilter narrows a findByWorkflow / countByWorkflow query (spec
// §4.5).
type ExecutionFilter struct {
	Version *int
	Status  *domain.ExecutionStatus
	Limit   int
	Offset  int
}

// ExecutionPage is the paginated result of findByWorkflow.
type ExecutionPage struct {
	Executions []domain.ExecutionSummary
	Total      int
	Limit      int
	Offset     int
	HasMore    bool
}

// RevisionStore is C6: persists workflow revisions with uniqueness, version
// assignment, optimistic-lock updates, and active-flag toggling (spec §4.4).
type RevisionStore interface {
	CreateInitial(ctx context.Context, rev domain.WorkflowRevision, sourceDoc string) (domain.WorkflowRevision, error)
	CreateNextRevision(ctx context.Context, namespace, workflowID string, rev domain.WorkflowRevision, sourceDoc string) (domain.WorkflowRevision, error)
	FindByID(ctx context.Context, id domain.WorkflowRevisionID) (*domain.WorkflowRevision, error)
	FindByIDWithSource(ctx context.Context, id domain.WorkflowRevisionID) (*domain.WorkflowRevisionWithSource, error)
	List(ctx context.Context, namespace, workflowID string, activeOnly bool) ([]domain.WorkflowRevision, error)
	Update(ctx context.Context, id domain.WorkflowRevisionID, updated domain.WorkflowRevision, expectedUpdatedAt time.Time) error
	SetActive(ctx context.Context, id domain.WorkflowRevisionID, desired bool, expectedUpdatedAt time.Time) error
	DeleteRevision(ctx context.Context, id domain.WorkflowRevisionID) error
	DeleteWorkflow(ctx context.Context, namespace, workflowID string) error
}

// ExecutionStore is C7: persists the execution header and its append-only
// step-result stream (spec §4.5).
type ExecutionStore interface {
	CreateExecution(ctx context.Context, header domain.WorkflowExecution) error
	AppendStepResult(ctx context.Context, result domain.ExecutionStepResult) error
	SetTerminal(ctx context.Context, executionID string, status domain.ExecutionStatus, errorMessage string, completedAt time.Time) error
	FindByID(ctx context.Context, executionID string) (*domain.WorkflowExecution, []domain.ExecutionStepResult, error)
	FindByWorkflow(ctx context.Context, namespace, workflowID string, filter ExecutionFilter) (ExecutionPage, error)
	CountByWorkflow(ctx context.Context, namespace, workflowID string, filter ExecutionFilter) (int, error)
}
