package interpreter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-org/maestro/internal/domain"
	"github.com/maestro-org/maestro/internal/execctx"
	"github.com/maestro-org/maestro/internal/workexec"
)

func testDeps(work *workexec.Registry) Deps {
	n := 0
	return Deps{
		Work: work,
		NewResultID: func() string {
			n++
			return fmt.Sprintf("result-%d", n)
		},
		Now:  func() time.Time { return time.Unix(0, 0).UTC() },
		Logf: func(string, ...any) {},
	}
}

func collect() (Sink, *[]domain.ExecutionStepResult) {
	var results []domain.ExecutionStepResult
	return func(r domain.ExecutionStepResult) error {
		results = append(results, r)
		return nil
	}, &results
}

func TestRun_SequenceAllCompleted(t *testing.T) {
	work := workexec.NewRegistry()
	workexec.RegisterBuiltins(work)

	root := domain.Step{
		Kind: domain.KindSequence,
		Children: []domain.Step{
			{Kind: domain.KindLog, StepID: "a", Message: "hi"},
			{Kind: domain.KindWork, StepID: "b", WorkKind: "noop", Config: map[string]any{}},
		},
	}

	sink, results := collect()
	status, _, err := Run(context.Background(), root, execctx.New(nil), sink, testDeps(work))

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, status)
	require.Len(t, *results, 2)
	assert.Equal(t, 0, (*results)[0].StepIndex)
	assert.Equal(t, 1, (*results)[1].StepIndex)
}

func TestRun_FailFastSkipsRemainingSiblings(t *testing.T) {
	work := workexec.NewRegistry()
	workexec.RegisterBuiltins(work)

	root := domain.Step{
		Kind: domain.KindSequence,
		Children: []domain.Step{
			{Kind: domain.KindWork, StepID: "boom", WorkKind: "fail", Config: map[string]any{"reason": "kaboom"}},
			{Kind: domain.KindLog, StepID: "never", Message: "unreachable"},
		},
	}

	sink, results := collect()
	status, _, err := Run(context.Background(), root, execctx.New(nil), sink, testDeps(work))

	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, status)
	require.Len(t, *results, 2)
	assert.Equal(t, domain.StepFailed, (*results)[0].Status)
	assert.Equal(t, domain.StepSkipped, (*results)[1].Status)
	assert.Equal(t, "kaboom", (*results)[0].ErrorMessage)
}

func TestRun_IfTakesThenBranch(t *testing.T) {
	work := workexec.NewRegistry()
	workexec.RegisterBuiltins(work)

	root := domain.Step{
		Kind: domain.KindSequence,
		Children: []domain.Step{
			{
				Kind:      domain.KindIf,
				StepID:    "cond",
				Condition: "params.go",
				Then:      []domain.Step{{Kind: domain.KindLog, StepID: "then-leaf", Message: "yes"}},
				Else:      []domain.Step{{Kind: domain.KindLog, StepID: "else-leaf", Message: "no"}},
			},
		},
	}

	sink, results := collect()
	status, _, err := Run(context.Background(), root, execctx.New(map[string]any{"go": true}), sink, testDeps(work))

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, status)
	require.Len(t, *results, 1)
	assert.Equal(t, "then-leaf", (*results)[0].StepID)
}

func TestRun_IfConditionErrorFailsNode(t *testing.T) {
	work := workexec.NewRegistry()
	root := domain.Step{
		Kind: domain.KindSequence,
		Children: []domain.Step{
			{Kind: domain.KindIf, StepID: "cond", Condition: "params.missing"},
		},
	}

	sink, results := collect()
	status, _, err := Run(context.Background(), root, execctx.New(nil), sink, testDeps(work))

	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, status)
	require.Len(t, *results, 1)
	assert.Equal(t, domain.StepFailed, (*results)[0].Status)
	assert.Equal(t, "ConditionEvaluationError", (*results)[0].ErrorDetails.ErrorType)
}

func TestRun_UnknownWorkKindFails(t *testing.T) {
	work := workexec.NewRegistry()
	root := domain.Step{
		Kind: domain.KindSequence,
		Children: []domain.Step{
			{Kind: domain.KindWork, StepID: "w", WorkKind: "does-not-exist"},
		},
	}

	sink, results := collect()
	status, _, err := Run(context.Background(), root, execctx.New(nil), sink, testDeps(work))

	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, status)
	assert.Equal(t, "UnknownWorkKind", (*results)[0].ErrorDetails.ErrorType)
}

func TestRun_WorkOutputThreadedIntoContext(t *testing.T) {
	work := workexec.NewRegistry()
	work.Register("echo", func(_ context.Context, config map[string]any) (any, error) {
		return config["value"], nil
	})

	root := domain.Step{
		Kind: domain.KindSequence,
		Children: []domain.Step{
			{Kind: domain.KindWork, StepID: "producer", WorkKind: "echo", Config: map[string]any{"value": "threaded"}},
		},
	}

	sink, _ := collect()
	_, finalCtx, err := Run(context.Background(), root, execctx.New(nil), sink, testDeps(work))

	require.NoError(t, err)
	assert.Equal(t, "threaded", finalCtx.StepOutputs()["producer"])
}

func TestRun_SinkErrorAbortsRun(t *testing.T) {
	work := workexec.NewRegistry()
	workexec.RegisterBuiltins(work)

	root := domain.Step{
		Kind: domain.KindSequence,
		Children: []domain.Step{
			{Kind: domain.KindLog, StepID: "a", Message: "hi"},
			{Kind: domain.KindLog, StepID: "b", Message: "bye"},
		},
	}

	sinkErr := fmt.Errorf("checkpoint commit failed")
	calls := 0
	sink := func(domain.ExecutionStepResult) error {
		calls++
		return sinkErr
	}

	_, _, err := Run(context.Background(), root, execctx.New(nil), sink, testDeps(work))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRun_NestingDepthGuard(t *testing.T) {
	work := workexec.NewRegistry()

	var deepen func(depth int) domain.Step
	deepen = func(depth int) domain.Step {
		if depth == 0 {
			return domain.Step{Kind: domain.KindLog, StepID: "leaf", Message: "deep"}
		}
		return domain.Step{Kind: domain.KindSequence, StepID: fmt.Sprintf("seq-%d", depth), Children: []domain.Step{deepen(depth - 1)}}
	}
	root := deepen(domain.MaxNestingDepth + 3)

	sink, results := collect()
	status, _, err := Run(context.Background(), root, execctx.New(nil), sink, testDeps(work))

	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, status)
	require.Len(t, *results, 1)
	assert.Equal(t, "NestingDepthExceeded", (*results)[0].ErrorDetails.ErrorType)
}
