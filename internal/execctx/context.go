// Package execctx implements C2, the execution context: an immutable bundle
// of validated input parameters and accumulated step outputs threaded
// through the interpreter. It mirrors the copy-on-write discipline tako's
// internal/engine/context.go ContextBuilder uses to build immutable
// TemplateContext values, generalized from map[string]string to
// map[string]any since step outputs are typed values, not template strings.
package execctx

// Context is immutable: every apparent mutator returns a new value and
// leaves the receiver untouched.
type Context struct {
	inputParameters map[string]any
	stepOutputs     map[string]any
}

// New builds the initial context from validated input parameters.
func New(inputParameters map[string]any) Context {
	return Context{
		inputParameters: cloneMap(inputParameters),
		stepOutputs:     map[string]any{},
	}
}

// InputParameters returns the validated input parameters. The returned map
// must not be mutated by callers; Snapshot returns a safe-to-mutate copy.
func (c Context) InputParameters() map[string]any {
	return c.inputParameters
}

// StepOutputs returns the outputs accumulated so far, keyed by stepId. The
// returned map must not be mutated by callers.
func (c Context) StepOutputs() map[string]any {
	return c.stepOutputs
}

// WithStepOutput returns a new Context with stepID's output recorded,
// leaving c unchanged (spec §3: "mutation forbidden").
func (c Context) WithStepOutput(stepID string, value any) Context {
	next := make(map[string]any, len(c.stepOutputs)+1)
	for k, v := range c.stepOutputs {
		next[k] = v
	}
	next[stepID] = value
	return Context{inputParameters: c.inputParameters, stepOutputs: next}
}

// Snapshot returns the {"params": ..., "outputs": ...} shallow copy spec
// §4.1 specifies as each step result's inputData.
func (c Context) Snapshot() map[string]any {
	return map[string]any{
		"params":  cloneMap(c.inputParameters),
		"outputs": cloneMap(c.stepOutputs),
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
