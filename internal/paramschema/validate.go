// Package paramschema implements C3, the parameter validator: it type-checks
// and coerces a submitted parameter map against a revision's declared
// schema, applying defaults, per spec §4.2. Validation is total and always
// reports every violation at once rather than failing fast on the first.
package paramschema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/maestro-org/maestro/internal/domain"
	"github.com/maestro-org/maestro/internal/merrors"
)

// Validate checks submitted against schema and returns the coerced,
// defaults-applied parameter map, or the full list of violations.
func Validate(submitted map[string]any, schema []domain.ParameterDefinition) (map[string]any, []merrors.ParamError) {
	var errs []merrors.ParamError

	byName := make(map[string]domain.ParameterDefinition, len(schema))
	for _, p := range schema {
		byName[p.Name] = p
	}

	// Rule 1: unknown parameters.
	for name, value := range submitted {
		if _, ok := byName[name]; !ok {
			errs = append(errs, merrors.ParamError{Name: name, Reason: "not defined", Provided: value})
		}
	}

	// Rule 2: missing required.
	for _, p := range schema {
		if !p.Required {
			continue
		}
		if _, present := submitted[p.Name]; present {
			continue
		}
		if p.Default != nil {
			continue
		}
		errs = append(errs, merrors.ParamError{Name: p.Name, Reason: "required parameter missing", Provided: nil})
	}

	// Rule 3: type check and coercion.
	ok := make(map[string]any, len(submitted))
	for _, p := range schema {
		value, present := submitted[p.Name]
		if !present {
			continue
		}
		coerced, typeErr := coerce(p.Type, value)
		if typeErr != "" {
			errs = append(errs, merrors.ParamError{Name: p.Name, Reason: typeErr, Provided: value})
			continue
		}
		ok[p.Name] = coerced
	}

	if len(errs) > 0 {
		return nil, errs
	}

	// Rule 4: defaults.
	for _, p := range schema {
		if _, present := ok[p.Name]; present {
			continue
		}
		if p.Default != nil {
			ok[p.Name] = p.Default
		}
	}

	return ok, nil
}

// coerce returns the coerced value for declared type t, or a non-empty
// reason string describing why value was rejected.
func coerce(t domain.ParameterType, value any) (any, string) {
	switch t {
	case domain.ParamString:
		if s, isStr := value.(string); isStr {
			return s, ""
		}
		return nil, fmt.Sprintf("STRING expected, got %s", describe(value))

	case domain.ParamInteger:
		switch v := value.(type) {
		case int:
			return int64(v), ""
		case int64:
			return v, ""
		case float64:
			// encoding/json decodes bare JSON numbers into map[string]any
			// as float64, so a submitted INTEGER parameter arrives this
			// way over the HTTP boundary; only accept it when it carries
			// no fractional part.
			if v == float64(int64(v)) {
				return int64(v), ""
			}
			return nil, fmt.Sprintf("INTEGER expected, got %s", describe(value))
		case string:
			trimmed := strings.TrimSpace(v)
			if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
				return n, ""
			}
			return nil, fmt.Sprintf("INTEGER expected, got %s", describe(value))
		default:
			return nil, fmt.Sprintf("INTEGER expected, got %s", describe(value))
		}

	case domain.ParamFloat:
		switch v := value.(type) {
		case int:
			return float64(v), ""
		case int64:
			return float64(v), ""
		case float64:
			return v, ""
		case string:
			trimmed := strings.TrimSpace(v)
			if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
				return f, ""
			}
			return nil, fmt.Sprintf("FLOAT expected, got %s", describe(value))
		default:
			return nil, fmt.Sprintf("FLOAT expected, got %s", describe(value))
		}

	case domain.ParamBoolean:
		switch v := value.(type) {
		case bool:
			return v, ""
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true":
				return true, ""
			case "false":
				return false, ""
			}
			return nil, fmt.Sprintf("BOOLEAN expected, got %s", describe(value))
		default:
			return nil, fmt.Sprintf("BOOLEAN expected, got %s", describe(value))
		}

	default:
		return nil, fmt.Sprintf("unsupported declared type %q", t)
	}
}

func describe(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return fmt.Sprintf("boolean(%v)", v)
	case string:
		return fmt.Sprintf("string(%q)", v)
	case float64, int, int64:
		return fmt.Sprintf("number(%v)", v)
	default:
		return fmt.Sprintf("%T", v)
	}
}
