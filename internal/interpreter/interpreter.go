// Package interpreter implements C4, the step interpreter: given a revision's
// root step and an initial execution context, it produces an ordered stream
// of domain.ExecutionStepResult values and a final status, per spec §4.1.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maestro-org/maestro/internal/condition"
	"github.com/maestro-org/maestro/internal/domain"
	"github.com/maestro-org/maestro/internal/execctx"
	"github.com/maestro-org/maestro/internal/workexec"
)

// FinalStatus is the terminal outcome of one interpreter run.
type FinalStatus = domain.ExecutionStatus

// Sink receives each ExecutionStepResult as the interpreter produces it. A
// non-nil error aborts the run immediately (spec §4.7: "infrastructure fault
// during step commit"); the caller (the execution coordinator) distinguishes
// this from a normal FAILED outcome.
type Sink func(domain.ExecutionStepResult) error

// Deps bundles the interpreter's collaborators.
type Deps struct {
	Work        *workexec.Registry
	NewResultID func() string
	Now         func() time.Time
	Logf        func(format string, args ...any)
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func (d Deps) logf(format string, args ...any) {
	if d.Logf != nil {
		d.Logf(format, args...)
	}
}

// Run walks root depth-first, left-to-right, emitting leaf results to sink in
// execution order starting at stepIndex 0, and returns the final status and
// the context as of the last successfully completed step.
func Run(ctx context.Context, root domain.Step, initial execctx.Context, sink Sink, deps Deps) (FinalStatus, execctx.Context, error) {
	r := &run{ctx: ctx, sink: sink, deps: deps}
	finalCtx, outcome := r.visit(root, initial, 0)
	if r.commitErr != nil {
		return "", finalCtx, r.commitErr
	}
	if outcome == outcomeFailed {
		return domain.StatusFailed, finalCtx, nil
	}
	return domain.StatusCompleted, finalCtx, nil
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeFailed
)

type run struct {
	ctx       context.Context
	sink      Sink
	deps      Deps
	nextIndex int
	commitErr error
}

// visit dispatches on step.Kind and returns the context to use for the next
// sibling plus whether this subtree failed. depth is the nesting depth of
// step itself (the document's top-level steps are depth 1; the implicit root
// is depth 0), matching steptree's decode-time guard.
func (r *run) visit(step domain.Step, ctx execctx.Context, depth int) (execctx.Context, outcome) {
	if r.commitErr != nil {
		return ctx, outcomeFailed
	}
	if depth > domain.MaxNestingDepth {
		r.emitNodeFailure(step, ctx, "NestingDepthExceeded", fmt.Sprintf("nesting depth exceeds %d", domain.MaxNestingDepth))
		return ctx, outcomeFailed
	}

	switch step.Kind {
	case domain.KindSequence:
		return r.visitSequence(step, ctx, depth)
	case domain.KindIf:
		return r.visitIf(step, ctx, depth)
	case domain.KindLog:
		return r.visitLog(step, ctx)
	case domain.KindWork:
		return r.visitWork(step, ctx)
	default:
		r.emitNodeFailure(step, ctx, "UnknownStepKind", fmt.Sprintf("unknown step kind %q", step.Kind))
		return ctx, outcomeFailed
	}
}

func (r *run) visitSequence(step domain.Step, ctx execctx.Context, depth int) (execctx.Context, outcome) {
	cur := ctx
	for i, child := range step.Children {
		var out outcome
		cur, out = r.visit(child, cur, depth+1)
		if r.commitErr != nil {
			return cur, outcomeFailed
		}
		if out == outcomeFailed {
			for _, rest := range step.Children[i+1:] {
				r.skipSubtree(rest, cur)
				if r.commitErr != nil {
					return cur, outcomeFailed
				}
			}
			return cur, outcomeFailed
		}
	}
	return cur, outcomeCompleted
}

func (r *run) visitIf(step domain.Step, ctx execctx.Context, depth int) (execctx.Context, outcome) {
	eval, ok := condition.Lookup("default")
	if !ok {
		r.emitNodeFailure(step, ctx, "ConditionEvaluationError", "no condition evaluator registered")
		return ctx, outcomeFailed
	}
	result, err := eval(step.Condition, ctx)
	if err != nil {
		r.emitNodeFailure(step, ctx, "ConditionEvaluationError", err.Error())
		return ctx, outcomeFailed
	}
	if result {
		return r.visitBranch(step.Then, ctx, depth)
	}
	return r.visitBranch(step.Else, ctx, depth)
}

func (r *run) visitBranch(children []domain.Step, ctx execctx.Context, depth int) (execctx.Context, outcome) {
	cur := ctx
	for i, child := range children {
		var out outcome
		cur, out = r.visit(child, cur, depth+1)
		if r.commitErr != nil {
			return cur, outcomeFailed
		}
		if out == outcomeFailed {
			for _, rest := range children[i+1:] {
				r.skipSubtree(rest, cur)
				if r.commitErr != nil {
					return cur, outcomeFailed
				}
			}
			return cur, outcomeFailed
		}
	}
	return cur, outcomeCompleted
}

func (r *run) visitLog(step domain.Step, ctx execctx.Context) (execctx.Context, outcome) {
	started := r.deps.now()
	message := substitute(step.Message, ctx.InputParameters())
	r.deps.logf("%s", message)

	completed := r.deps.now()
	result := domain.ExecutionStepResult{
		ResultID:    r.deps.NewResultID(),
		StepIndex:   r.allocIndex(),
		StepID:      step.StepID,
		StepType:    string(domain.KindLog),
		Status:      domain.StepCompleted,
		InputData:   ctx.Snapshot(),
		OutputData:  nil,
		StartedAt:   started,
		CompletedAt: completed,
	}
	r.emit(result)
	return ctx, outcomeCompleted
}

func (r *run) visitWork(step domain.Step, ctx execctx.Context) (execctx.Context, outcome) {
	started := r.deps.now()
	snapshot := ctx.Snapshot()

	value, err := r.deps.Work.Dispatch(r.ctx, step.WorkKind, step.Config)
	completed := r.deps.now()

	if err != nil {
		errType := errorTypeName(err)
		if errors.Is(err, workexec.ErrUnknownKind) {
			errType = "UnknownWorkKind"
		}
		result := domain.ExecutionStepResult{
			ResultID:    r.deps.NewResultID(),
			StepIndex:   r.allocIndex(),
			StepID:      step.StepID,
			StepType:    string(domain.KindWork),
			Status:      domain.StepFailed,
			InputData:   snapshot,
			StartedAt:   started,
			CompletedAt: completed,
			ErrorMessage: err.Error(),
			ErrorDetails: &domain.ErrorDetails{
				ErrorType:  errType,
				StackTrace: "",
				StepInputs: snapshot,
			},
		}
		r.emit(result)
		return ctx, outcomeFailed
	}

	result := domain.ExecutionStepResult{
		ResultID:    r.deps.NewResultID(),
		StepIndex:   r.allocIndex(),
		StepID:      step.StepID,
		StepType:    string(domain.KindWork),
		Status:      domain.StepCompleted,
		InputData:   snapshot,
		OutputData:  value,
		StartedAt:   started,
		CompletedAt: completed,
	}
	r.emit(result)
	return ctx.WithStepOutput(step.StepID, value), outcomeCompleted
}

// skipSubtree marks every leaf beneath step as SKIPPED. step is an unvisited
// sibling of a failed step, so none of its branches has been taken.
func (r *run) skipSubtree(step domain.Step, ctx execctx.Context) {
	switch step.Kind {
	case domain.KindSequence:
		for _, c := range step.Children {
			r.skipSubtree(c, ctx)
		}
	case domain.KindIf:
		// An If node never visited is never evaluated, so the leaves of both
		// branches are SKIPPED. The If node itself gets no result record
		// (orchestration nodes do not produce one).
		for _, c := range step.Then {
			r.skipSubtree(c, ctx)
		}
		for _, c := range step.Else {
			r.skipSubtree(c, ctx)
		}
	case domain.KindLog, domain.KindWork:
		result := domain.ExecutionStepResult{
			ResultID:    r.deps.NewResultID(),
			StepIndex:   r.allocIndex(),
			StepID:      step.StepID,
			StepType:    string(step.Kind),
			Status:      domain.StepSkipped,
			InputData:   ctx.Snapshot(),
			StartedAt:   r.deps.now(),
			CompletedAt: r.deps.now(),
		}
		r.emit(result)
	}
}

// emitNodeFailure emits a single FAILED result on behalf of an orchestration
// node itself (If condition errors, nesting depth exceeded), per spec §4.1.
func (r *run) emitNodeFailure(step domain.Step, ctx execctx.Context, errType, message string) {
	snapshot := ctx.Snapshot()
	now := r.deps.now()
	result := domain.ExecutionStepResult{
		ResultID:     r.deps.NewResultID(),
		StepIndex:    r.allocIndex(),
		StepID:       step.StepID,
		StepType:     string(step.Kind),
		Status:       domain.StepFailed,
		InputData:    snapshot,
		ErrorMessage: message,
		ErrorDetails: &domain.ErrorDetails{ErrorType: errType, StackTrace: "", StepInputs: snapshot},
		StartedAt:    now,
		CompletedAt:  now,
	}
	r.emit(result)
}

func (r *run) allocIndex() int {
	i := r.nextIndex
	r.nextIndex++
	return i
}

func (r *run) emit(result domain.ExecutionStepResult) {
	if r.commitErr != nil {
		return
	}
	if err := r.sink(result); err != nil {
		r.commitErr = err
	}
}

// substitute replaces every {name} token in message with params[name]'s
// string form, best-effort (spec §4.1: unresolvable tokens are left as-is).
func substitute(message string, params map[string]any) string {
	var b strings.Builder
	i := 0
	for i < len(message) {
		open := strings.IndexByte(message[i:], '{')
		if open < 0 {
			b.WriteString(message[i:])
			break
		}
		b.WriteString(message[i : i+open])
		rest := message[i+open+1:]
		close := strings.IndexByte(rest, '}')
		if close < 0 {
			b.WriteString(message[i+open:])
			break
		}
		name := rest[:close]
		if value, ok := params[name]; ok {
			fmt.Fprintf(&b, "%v", value)
		} else {
			fmt.Fprintf(&b, "{%s}", name)
		}
		i = i + open + 1 + close + 1
	}
	return b.String()
}

// errorTypeName returns a stable type-name string for err, preferring an
// explicit TypeName() method anywhere in err's Unwrap chain (as
// workexec.Executor errors may implement) and falling back to the Go
// concrete type of err itself.
func errorTypeName(err error) string {
	type typeNamer interface{ TypeName() string }
	for e := err; e != nil; {
		if tn, ok := e.(typeNamer); ok {
			return tn.TypeName()
		}
		unwrapped, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		next := unwrapped.Unwrap()
		if next == nil {
			break
		}
		e = next
	}
	return fmt.Sprintf("%T", err)
}
