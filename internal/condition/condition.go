// Package condition evaluates an If step's predicate against the current
// execution context. The v1 default dialect is the minimal one spec §3/§9
// fixes: the literals "true"/"false", or "params.<name>" referencing a
// BOOLEAN parameter. A registry of named dialects lets a richer evaluator be
// plugged in later without touching the interpreter (spec §9: "richer
// evaluators are extension points").
package condition

import (
	"fmt"
	"strings"

	"github.com/maestro-org/maestro/internal/execctx"
)

// Evaluator evaluates a condition string against ctx, returning the boolean
// result or an error if the condition cannot be evaluated (spec §4.1:
// unknown parameter, non-boolean reference, or unparseable expression).
type Evaluator func(condition string, ctx execctx.Context) (bool, error)

var registry = map[string]Evaluator{
	"default": EvaluateDefault,
}

// Register adds or replaces the evaluator for dialect name.
func Register(name string, eval Evaluator) {
	registry[name] = eval
}

// Lookup returns the evaluator registered under name, or the default
// dialect if name is empty.
func Lookup(name string) (Evaluator, bool) {
	if name == "" {
		name = "default"
	}
	eval, ok := registry[name]
	return eval, ok
}

// EvaluateDefault implements the v1 minimal dialect: literal "true"/"false",
// or "params.<name>" referencing a BOOLEAN input parameter.
func EvaluateDefault(condition string, ctx execctx.Context) (bool, error) {
	trimmed := strings.TrimSpace(condition)
	switch trimmed {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	name, ok := strings.CutPrefix(trimmed, "params.")
	if !ok {
		return false, fmt.Errorf("condition: unrecognized condition %q", condition)
	}
	value, present := ctx.InputParameters()[name]
	if !present {
		return false, fmt.Errorf("condition: unknown parameter %q", name)
	}
	b, isBool := value.(bool)
	if !isBool {
		return false, fmt.Errorf("condition: parameter %q is not a BOOLEAN", name)
	}
	return b, nil
}
