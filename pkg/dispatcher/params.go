package dispatcher

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/quantdesk/command-registry/pkg/registry"
)

// validateStandard checks the supplied standard parameters against the
// model schema: required fields present, values type-conformant (with
// lossless coercion), unspecified optional fields taking declared defaults.
// Keys not in the model schema are returned separately so they can be
// checked against the binding's extra schema.
func validateStandard(model *registry.StandardModel, values map[string]interface{}) (map[string]interface{}, map[string]interface{}, *registry.Error) {
	out := make(map[string]interface{}, len(model.Params))
	for _, f := range model.Params {
		v, ok := values[f.Name]
		if !ok {
			if f.Required {
				return nil, nil, &registry.Error{
					Code:    registry.CodeParameterValidation,
					Message: fmt.Sprintf("missing required standard parameter: %s", f.Name),
					Details: map[string]string{"field": f.Name},
				}
			}
			if f.Default != nil {
				out[f.Name] = f.Default
			}
			continue
		}
		coerced, ok := coerce(f.Kind, v)
		if !ok {
			return nil, nil, &registry.Error{
				Code:    registry.CodeParameterValidation,
				Message: fmt.Sprintf("standard parameter %s: value %v is not %s-conformant", f.Name, v, f.Kind),
				Details: map[string]string{"field": f.Name},
			}
		}
		out[f.Name] = coerced
	}

	var unknown map[string]interface{}
	for name, v := range values {
		if _, ok := model.Param(name); !ok {
			if unknown == nil {
				unknown = make(map[string]interface{})
			}
			unknown[name] = v
		}
	}
	return out, unknown, nil
}

// validateExtra checks supplied extra parameters against the binding's
// schema. Under strict mode an undeclared parameter is rejected with a
// validation error naming it; under lenient mode it is dropped with a
// warning. Unspecified optional extras take their declared defaults.
func validateExtra(binding *registry.Binding, values map[string]interface{}, strict bool) (map[string]interface{}, []registry.Warning, *registry.Error) {
	out := make(map[string]interface{}, len(binding.ExtraParams))
	var warnings []registry.Warning

	for name, v := range values {
		f, ok := binding.ExtraParam(name)
		if !ok {
			if strict {
				return nil, nil, &registry.Error{
					Code:    registry.CodeUnknownParameter,
					Message: fmt.Sprintf("unknown parameter for provider %s: %s", binding.Provider, name),
					Details: map[string]string{"field": name},
				}
			}
			warnings = append(warnings, registry.Warning{
				Category: "parameter",
				Message:  fmt.Sprintf("ignoring unknown parameter %s for provider %s", name, binding.Provider),
			})
			continue
		}
		coerced, ok := coerce(f.Kind, v)
		if !ok {
			return nil, nil, &registry.Error{
				Code:    registry.CodeParameterValidation,
				Message: fmt.Sprintf("extra parameter %s: value %v is not %s-conformant", name, v, f.Kind),
				Details: map[string]string{"field": name},
			}
		}
		out[name] = coerced
	}

	for _, f := range binding.ExtraParams {
		if _, supplied := out[f.Name]; !supplied && f.Default != nil {
			out[f.Name] = f.Default
		}
	}
	return out, warnings, nil
}

// mergeParams combines validated standard and extra parameters into the
// single argument map passed to the fetch callable. Collisions cannot occur:
// Bind rejects extra names that shadow standard names.
func mergeParams(std, extra map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(std)+len(extra))
	for k, v := range std {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// coerce converts a value to the field kind when the conversion is
// lossless (e.g. a numeric string to a number, an integral float to an
// int). Lossy conversions are rejected.
func coerce(kind registry.FieldKind, v interface{}) (interface{}, bool) {
	switch kind {
	case registry.KindString:
		s, ok := v.(string)
		return s, ok
	case registry.KindInt:
		switch n := v.(type) {
		case int:
			return int64(n), true
		case int64:
			return n, true
		case float64:
			if n == math.Trunc(n) {
				return int64(n), true
			}
		case string:
			if parsed, err := strconv.ParseInt(n, 10, 64); err == nil {
				return parsed, true
			}
		}
	case registry.KindFloat:
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case string:
			if parsed, err := strconv.ParseFloat(n, 64); err == nil {
				return parsed, true
			}
		}
	case registry.KindBool:
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed, true
			}
		}
	case registry.KindDate:
		switch d := v.(type) {
		case string:
			if _, err := time.Parse("2006-01-02", d); err == nil {
				return d, true
			}
		case time.Time:
			return d.Format("2006-01-02"), true
		}
	}
	return nil, false
}
