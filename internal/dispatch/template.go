package dispatch

import (
	"encoding/json"
	"strconv"
	"strings"
)

// substitutionTokens are the recognized placeholders in mqtt payload
// templates. Anything else in {{...}} form stays untouched.
var substitutionTokens = []string{"value", "capability", "instance", "device_id"}

// renderTemplate performs literal token substitution. Replacement is
// idempotent for templates without tokens and leaves unrecognized tokens
// as-is.
func renderTemplate(template string, values map[string]string) string {
	rendered := template
	for _, token := range substitutionTokens {
		value, ok := values[token]
		if !ok {
			continue
		}
		rendered = strings.ReplaceAll(rendered, "{{"+token+"}}", value)
	}
	return rendered
}

// stringify renders a JSON-decoded payload value into template text.
// Floats print without a trailing exponent so integral values come out as
// plain integers.
func stringify(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
