package actions

import (
	"fmt"
	"strings"
)

// ValidateParams checks a merged payload against an action schema. Bindings
// save configs incrementally, so this runs at invoke time rather than at
// creation.
func ValidateParams(schema Schema, params map[string]any) error {
	for _, field := range schema.Fields {
		value, hasValue := params[field.Key]
		if !hasValue || isEmpty(value) {
			if field.Required && field.Default == nil {
				return fmt.Errorf("missing required param %q", field.Key)
			}
			continue
		}

		switch field.Kind {
		case ParamString:
			if _, ok := value.(string); !ok {
				return fmt.Errorf("param %q must be string", field.Key)
			}
		case ParamInteger:
			if !isIntegral(value) {
				return fmt.Errorf("param %q must be integer", field.Key)
			}
		case ParamNumber:
			if !isNumeric(value) {
				return fmt.Errorf("param %q must be number", field.Key)
			}
		case ParamEnum:
			actual, ok := value.(string)
			if !ok {
				return fmt.Errorf("param %q must be enum string", field.Key)
			}
			if !contains(field.Options, actual) {
				return fmt.Errorf("param %q has invalid value %q", field.Key, actual)
			}
		default:
			return fmt.Errorf("param %q has unsupported kind %q", field.Key, field.Kind)
		}
	}
	return nil
}

func isEmpty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	default:
		return false
	}
}

// JSON decoding yields float64 for every number; accept native ints too for
// callers constructing payloads in Go.
func isIntegral(value any) bool {
	switch typed := value.(type) {
	case int, int32, int64:
		return true
	case float64:
		return typed == float64(int64(typed))
	default:
		return false
	}
}

func isNumeric(value any) bool {
	switch value.(type) {
	case int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
