package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-org/maestro/internal/domain"
	"github.com/maestro-org/maestro/internal/storage/memstore"
)

func TestSweepOnce_MarksStaleRunningFailed(t *testing.T) {
	executions := memstore.NewExecutionStore()
	now := time.Now().UTC()

	require.NoError(t, executions.CreateExecution(context.Background(), domain.WorkflowExecution{
		ExecutionID: "stale", Status: domain.StatusRunning, LastUpdatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, executions.CreateExecution(context.Background(), domain.WorkflowExecution{
		ExecutionID: "fresh", Status: domain.StatusRunning, LastUpdatedAt: now,
	}))

	s := New(executions, executions, nil)
	s.Timeout = time.Minute
	s.now = func() time.Time { return now }

	s.sweepOnce(context.Background())

	header, _, err := executions.FindByID(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, header.Status)
	assert.Contains(t, header.ErrorMessage, "OrchestratorCrashed")

	header, _, err = executions.FindByID(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, header.Status)
}

func TestSweepOnce_AlreadyTerminalIsNoop(t *testing.T) {
	executions := memstore.NewExecutionStore()
	now := time.Now().UTC()

	require.NoError(t, executions.CreateExecution(context.Background(), domain.WorkflowExecution{
		ExecutionID: "done", Status: domain.StatusCompleted, LastUpdatedAt: now.Add(-time.Hour),
	}))

	s := New(executions, executions, nil)
	s.Timeout = time.Minute
	s.now = func() time.Time { return now }

	s.sweepOnce(context.Background())

	header, _, err := executions.FindByID(context.Background(), "done")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, header.Status)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	executions := memstore.NewExecutionStore()
	s := New(executions, executions, nil)
	s.Interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
