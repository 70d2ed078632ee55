package paramschema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-org/maestro/internal/domain"
)

func schema() []domain.ParameterDefinition {
	return []domain.ParameterDefinition{
		{Name: "count", Type: domain.ParamInteger, Required: true},
		{Name: "ratio", Type: domain.ParamFloat},
		{Name: "enabled", Type: domain.ParamBoolean, Default: false},
		{Name: "label", Type: domain.ParamString, Default: "unset"},
	}
}

func TestValidate_Total_CollectsAllViolations(t *testing.T) {
	_, errs := Validate(map[string]any{
		"count":   "not-an-int",
		"ratio":   "x",
		"bogus":   1,
		"enabled": "maybe",
	}, schema())

	require.NotEmpty(t, errs)
	names := make(map[string]bool)
	for _, e := range errs {
		names[e.Name] = true
	}
	assert.True(t, names["count"])
	assert.True(t, names["ratio"])
	assert.True(t, names["bogus"])
	assert.True(t, names["enabled"])
}

func TestValidate_MissingRequiredNoDefault(t *testing.T) {
	_, errs := Validate(map[string]any{}, schema())
	require.Len(t, errs, 1)
	assert.Equal(t, "count", errs[0].Name)
	assert.Equal(t, "required parameter missing", errs[0].Reason)
}

func TestValidate_DefaultsApplied(t *testing.T) {
	out, errs := Validate(map[string]any{"count": 3}, schema())
	require.Nil(t, errs)
	assert.Equal(t, int64(3), out["count"])
	assert.Equal(t, false, out["enabled"])
	assert.Equal(t, "unset", out["label"])
	_, hasRatio := out["ratio"]
	assert.False(t, hasRatio)
}

func TestValidate_CoercesStringyTypes(t *testing.T) {
	out, errs := Validate(map[string]any{
		"count":   "42",
		"ratio":   "3.5",
		"enabled": "TRUE",
		"label":   "hi",
	}, schema())
	require.Nil(t, errs)
	assert.Equal(t, int64(42), out["count"])
	assert.Equal(t, 3.5, out["ratio"])
	assert.Equal(t, true, out["enabled"])
	assert.Equal(t, "hi", out["label"])
}

// TestValidate_CoercesJSONDecodedInteger guards against a real regression:
// encoding/json decodes a bare JSON number into map[string]any as float64,
// which is exactly the shape a parameter arrives in once it crosses the
// POST /api/executions boundary (json.Decoder into executionSubmitRequest's
// Parameters map[string]any).
func TestValidate_CoercesJSONDecodedInteger(t *testing.T) {
	var submitted map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"count": 5}`), &submitted))

	out, errs := Validate(submitted, schema())
	require.Nil(t, errs)
	assert.Equal(t, int64(5), out["count"])
}

func TestValidate_RejectsNonIntegralJSONFloatForInteger(t *testing.T) {
	var submitted map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"count": 5.5}`), &submitted))

	_, errs := Validate(submitted, schema())
	require.Len(t, errs, 1)
	assert.Equal(t, "count", errs[0].Name)
}

func TestValidate_RequiredSatisfiedByDefaultAlone(t *testing.T) {
	defs := []domain.ParameterDefinition{
		{Name: "count", Type: domain.ParamInteger, Required: true, Default: int64(7)},
	}
	out, errs := Validate(map[string]any{}, defs)
	require.Nil(t, errs)
	assert.Equal(t, int64(7), out["count"])
}
