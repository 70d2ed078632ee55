package condition

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/maestro-org/maestro/internal/execctx"
)

// init registers the "cel" dialect, a richer condition evaluator built on
// cel-go (kept from the teacher's own go.mod) that binds the input
// parameters as a single CEL variable "params" of type map(string, dyn),
// so full CEL expressions over them are allowed instead of the v1 minimal
// grammar's single boolean-lookup case. It is never the default: the
// interpreter evaluates If conditions with the "default" dialect only, so
// this evaluator is reached through Lookup("cel").
func init() {
	Register("cel", EvaluateCEL)
}

// EvaluateCEL compiles and evaluates condition as a CEL boolean expression
// with the execution's input parameters bound under the "params" variable.
func EvaluateCEL(condition string, ctx execctx.Context) (bool, error) {
	env, err := cel.NewEnv(cel.Variable("params", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return false, fmt.Errorf("condition: cel env: %w", err)
	}

	ast, issues := env.Compile(condition)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("condition: cel compile: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("condition: cel program: %w", err)
	}

	out, _, err := prg.Eval(map[string]any{"params": ctx.InputParameters()})
	if err != nil {
		return false, fmt.Errorf("condition: cel eval: %w", err)
	}

	boolVal, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("condition: cel expression did not evaluate to a boolean, got %s", refTypeName(out))
	}
	return bool(boolVal), nil
}

func refTypeName(v ref.Val) string {
	if v == nil {
		return "null"
	}
	return v.Type().TypeName()
}
