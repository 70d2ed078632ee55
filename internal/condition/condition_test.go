package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-org/maestro/internal/execctx"
)

func TestEvaluateDefault_Literals(t *testing.T) {
	ctx := execctx.New(nil)

	result, err := EvaluateDefault("true", ctx)
	require.NoError(t, err)
	assert.True(t, result)

	result, err = EvaluateDefault("false", ctx)
	require.NoError(t, err)
	assert.False(t, result)
}

func TestEvaluateDefault_ParamReference(t *testing.T) {
	ctx := execctx.New(map[string]any{"flag": true})

	result, err := EvaluateDefault("params.flag", ctx)
	require.NoError(t, err)
	assert.True(t, result)
}

func TestEvaluateDefault_UnknownParameter(t *testing.T) {
	ctx := execctx.New(map[string]any{})
	_, err := EvaluateDefault("params.missing", ctx)
	assert.Error(t, err)
}

func TestEvaluateDefault_NonBooleanParameter(t *testing.T) {
	ctx := execctx.New(map[string]any{"count": 3})
	_, err := EvaluateDefault("params.count", ctx)
	assert.Error(t, err)
}

func TestEvaluateDefault_Unparseable(t *testing.T) {
	ctx := execctx.New(nil)
	_, err := EvaluateDefault("not a real condition", ctx)
	assert.Error(t, err)
}

func TestLookup_DefaultsToDefaultDialect(t *testing.T) {
	eval, ok := Lookup("")
	require.True(t, ok)
	result, err := eval("true", execctx.New(nil))
	require.NoError(t, err)
	assert.True(t, result)
}

func TestCELDialect_RegisteredAndEvaluates(t *testing.T) {
	eval, ok := Lookup("cel")
	require.True(t, ok)

	ctx := execctx.New(map[string]any{"count": int64(5)})
	result, err := eval("params.count > 3", ctx)
	require.NoError(t, err)
	assert.True(t, result)

	result, err = eval("params.count > 10", ctx)
	require.NoError(t, err)
	assert.False(t, result)
}

func TestCELDialect_NonBooleanResultErrors(t *testing.T) {
	eval, _ := Lookup("cel")
	_, err := eval("params.count", execctx.New(map[string]any{"count": int64(5)}))
	assert.Error(t, err)
}
