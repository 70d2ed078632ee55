package execctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithStepOutput_LeavesReceiverUnchanged(t *testing.T) {
	base := New(map[string]any{"name": "a"})
	next := base.WithStepOutput("step-0", 42)

	assert.Empty(t, base.StepOutputs())
	assert.Equal(t, 42, next.StepOutputs()["step-0"])
}

func TestWithStepOutput_Chains(t *testing.T) {
	c := New(nil)
	c = c.WithStepOutput("a", 1)
	c = c.WithStepOutput("b", 2)

	assert.Equal(t, map[string]any{"a": 1, "b": 2}, c.StepOutputs())
}

func TestNew_ClonesInputParameters(t *testing.T) {
	input := map[string]any{"x": 1}
	c := New(input)
	input["x"] = 2

	assert.Equal(t, 1, c.InputParameters()["x"])
}

func TestSnapshot_ShapeAndIndependence(t *testing.T) {
	c := New(map[string]any{"p": 1}).WithStepOutput("s", "v")
	snap := c.Snapshot()

	assert.Equal(t, map[string]any{"p": 1}, snap["params"])
	assert.Equal(t, map[string]any{"s": "v"}, snap["outputs"])

	snap["params"].(map[string]any)["p"] = 999
	assert.Equal(t, 1, c.InputParameters()["p"])
}
