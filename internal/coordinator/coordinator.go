// Package coordinator implements C5, the execution coordinator: it
// generates an execution id, writes the initial header, drives the step
// interpreter, checkpoints every result transactionally, and finalizes the
// execution record, per spec §4.3.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maestro-org/maestro/internal/domain"
	"github.com/maestro-org/maestro/internal/execctx"
	"github.com/maestro-org/maestro/internal/interpreter"
	"github.com/maestro-org/maestro/internal/merrors"
	"github.com/maestro-org/maestro/internal/nanoid"
	"github.com/maestro-org/maestro/internal/paramschema"
	"github.com/maestro-org/maestro/internal/storage"
	"github.com/maestro-org/maestro/internal/workexec"
)

// DefaultTimeout is the per-execution wall-clock budget spec §5 defaults to
// when the caller does not override it.
const DefaultTimeout = 10 * time.Minute

// Coordinator is C5.
type Coordinator struct {
	Revisions storage.RevisionStore
	Executions storage.ExecutionStore
	Work       *workexec.Registry
	Timeout    time.Duration
	Logger     *slog.Logger
	now        func() time.Time
}

// New builds a Coordinator with spec-default timeout, using slog.Default() if
// logger is nil.
func New(revisions storage.RevisionStore, executions storage.ExecutionStore, work *workexec.Registry, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		Revisions:  revisions,
		Executions: executions,
		Work:       work,
		Timeout:    DefaultTimeout,
		Logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Execute runs spec §4.3's algorithm end to end and returns the new
// execution's id.
func (c *Coordinator) Execute(ctx context.Context, revID domain.WorkflowRevisionID, submitted map[string]any) (string, error) {
	rev, err := c.Revisions.FindByID(ctx, revID)
	if err != nil {
		return "", merrors.Wrap(merrors.SlugInternal, "failed to load revision", err)
	}
	if rev == nil {
		return "", merrors.New(merrors.SlugWorkflowNotFound, fmt.Sprintf("no revision %s/%s/%d", revID.Namespace, revID.WorkflowID, revID.Version))
	}

	validated, paramErrs := paramschema.Validate(submitted, rev.Parameters)
	if paramErrs != nil {
		return "", merrors.New(merrors.SlugParameterValidationError, "parameter validation failed").WithParams(paramErrs)
	}

	executionID := nanoid.New()
	startedAt := c.now()
	header := domain.WorkflowExecution{
		ExecutionID:     executionID,
		RevisionID:      revID,
		InputParameters: validated,
		Status:          domain.StatusRunning,
		StartedAt:       startedAt,
		LastUpdatedAt:   startedAt,
	}
	if err := c.Executions.CreateExecution(ctx, header); err != nil {
		return "", merrors.Wrap(merrors.SlugInternal, "failed to create execution header", err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	initialCtx := execctx.New(validated)
	var firstFailure string

	sink := func(result domain.ExecutionStepResult) error {
		result.ExecutionID = executionID
		if result.Status == domain.StepFailed && firstFailure == "" {
			firstFailure = result.ErrorMessage
		}
		return c.Executions.AppendStepResult(ctx, result)
	}

	deps := interpreter.Deps{
		Work:        c.Work,
		NewResultID: nanoid.New,
		Now:         c.now,
		Logf:        func(format string, args ...any) { c.Logger.Info(fmt.Sprintf(format, args...)) },
	}

	finalStatus, _, runErr := interpreter.Run(runCtx, rev.RootStep, initialCtx, sink, deps)

	completedAt := c.now()

	if runErr != nil {
		// Checkpoint commit failed mid-run. Attempt the terminal FAILED
		// transition; if that too fails, the execution remains RUNNING and
		// is left for the sweeper (spec §4.3 step 9, §4.7).
		if termErr := c.Executions.SetTerminal(ctx, executionID, domain.StatusFailed, "CheckpointCommitFailed: "+runErr.Error(), completedAt); termErr != nil {
			c.Logger.Error("coordinator: failed to write terminal status after checkpoint fault", "executionId", executionID, "error", termErr)
			return executionID, merrors.Wrap(merrors.SlugInternal, "checkpoint commit failed and terminal transition also failed", termErr)
		}
		return executionID, merrors.Wrap(merrors.SlugInternal, "checkpoint commit failed", runErr)
	}

	if runCtx.Err() != nil {
		if err := c.Executions.SetTerminal(ctx, executionID, domain.StatusFailed, "ExecutionTimeout: execution exceeded wall-clock budget", completedAt); err != nil {
			c.Logger.Error("coordinator: failed to write timeout terminal status", "executionId", executionID, "error", err)
		}
		return executionID, nil
	}

	if finalStatus == domain.StatusCompleted {
		if err := c.Executions.SetTerminal(ctx, executionID, domain.StatusCompleted, "", completedAt); err != nil {
			return executionID, merrors.Wrap(merrors.SlugInternal, "failed to write completed terminal status", err)
		}
		return executionID, nil
	}

	if err := c.Executions.SetTerminal(ctx, executionID, domain.StatusFailed, firstFailure, completedAt); err != nil {
		return executionID, merrors.Wrap(merrors.SlugInternal, "failed to write failed terminal status", err)
	}
	return executionID, nil
}
