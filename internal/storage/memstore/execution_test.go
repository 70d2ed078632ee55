package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-org/maestro/internal/domain"
	"github.com/maestro-org/maestro/internal/storage"
)

func TestCreateExecution_RejectsDuplicateID(t *testing.T) {
	s := NewExecutionStore()
	header := domain.WorkflowExecution{ExecutionID: "exec-1", Status: domain.StatusRunning}
	require.NoError(t, s.CreateExecution(context.Background(), header))

	err := s.CreateExecution(context.Background(), header)
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestAppendStepResult_RequiresExistingExecution(t *testing.T) {
	s := NewExecutionStore()
	err := s.AppendStepResult(context.Background(), domain.ExecutionStepResult{ExecutionID: "missing"})
	assert.ErrorIs(t, err, storage.ErrExecutionNotFound)
}

func TestAppendStepResult_DuplicateIndexIsIdempotentNoop(t *testing.T) {
	s := NewExecutionStore()
	require.NoError(t, s.CreateExecution(context.Background(), domain.WorkflowExecution{ExecutionID: "e1"}))

	first := domain.ExecutionStepResult{ExecutionID: "e1", StepIndex: 0, StepID: "a"}
	second := domain.ExecutionStepResult{ExecutionID: "e1", StepIndex: 0, StepID: "b"}
	require.NoError(t, s.AppendStepResult(context.Background(), first))
	require.NoError(t, s.AppendStepResult(context.Background(), second))

	_, results, err := s.FindByID(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].StepID)
}

func TestSetTerminal_IdempotentOnceTerminal(t *testing.T) {
	s := NewExecutionStore()
	require.NoError(t, s.CreateExecution(context.Background(), domain.WorkflowExecution{ExecutionID: "e1", Status: domain.StatusRunning}))

	now := time.Now().UTC()
	require.NoError(t, s.SetTerminal(context.Background(), "e1", domain.StatusCompleted, "", now))
	require.NoError(t, s.SetTerminal(context.Background(), "e1", domain.StatusFailed, "should not apply", now.Add(time.Minute)))

	header, _, err := s.FindByID(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, header.Status)
	assert.Empty(t, header.ErrorMessage)
}

func TestSetTerminal_UnknownExecution(t *testing.T) {
	s := NewExecutionStore()
	err := s.SetTerminal(context.Background(), "missing", domain.StatusFailed, "x", time.Now())
	assert.ErrorIs(t, err, storage.ErrExecutionNotFound)
}

func TestFindByID_ResultsOrderedByStepIndex(t *testing.T) {
	s := NewExecutionStore()
	require.NoError(t, s.CreateExecution(context.Background(), domain.WorkflowExecution{ExecutionID: "e1"}))
	require.NoError(t, s.AppendStepResult(context.Background(), domain.ExecutionStepResult{ExecutionID: "e1", StepIndex: 2}))
	require.NoError(t, s.AppendStepResult(context.Background(), domain.ExecutionStepResult{ExecutionID: "e1", StepIndex: 0}))
	require.NoError(t, s.AppendStepResult(context.Background(), domain.ExecutionStepResult{ExecutionID: "e1", StepIndex: 1}))

	_, results, err := s.FindByID(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 0, results[0].StepIndex)
	assert.Equal(t, 1, results[1].StepIndex)
	assert.Equal(t, 2, results[2].StepIndex)
}

func TestFindByWorkflow_FiltersByStatus(t *testing.T) {
	s := NewExecutionStore()
	rev := domain.WorkflowRevisionID{Namespace: "ns", WorkflowID: "wf", Version: 1}
	for i := 0; i < 3; i++ {
		status := domain.StatusCompleted
		if i == 1 {
			status = domain.StatusFailed
		}
		require.NoError(t, s.CreateExecution(context.Background(), domain.WorkflowExecution{
			ExecutionID: "e" + string(rune('a'+i)),
			RevisionID:  rev,
			Status:      status,
			StartedAt:   time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	failed := domain.StatusFailed
	page, err := s.FindByWorkflow(context.Background(), "ns", "wf", storage.ExecutionFilter{Status: &failed})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Executions, 1)
	assert.Equal(t, domain.StatusFailed, page.Executions[0].Status)
}

func TestFindStaleRunning_OnlyRunningOlderThanCutoff(t *testing.T) {
	s := NewExecutionStore()
	now := time.Now().UTC()

	require.NoError(t, s.CreateExecution(context.Background(), domain.WorkflowExecution{
		ExecutionID: "stale", Status: domain.StatusRunning, LastUpdatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, s.CreateExecution(context.Background(), domain.WorkflowExecution{
		ExecutionID: "fresh", Status: domain.StatusRunning, LastUpdatedAt: now,
	}))
	require.NoError(t, s.CreateExecution(context.Background(), domain.WorkflowExecution{
		ExecutionID: "done", Status: domain.StatusCompleted, LastUpdatedAt: now.Add(-time.Hour),
	}))

	ids, err := s.FindStaleRunning(context.Background(), now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"stale"}, ids)
}
