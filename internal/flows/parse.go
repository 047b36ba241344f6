package flows

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// extractObject pulls the JSON object out of a model response. The response
// may be wrapped in markdown code fences or surrounded by prose.
func extractObject(content string) (map[string]json.RawMessage, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code fences if present
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object found in response", ErrSchemaViolation)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	return obj, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// requiredString returns obj[key] as a string. Missing, null and non-string
// values violate the schema.
func requiredString(obj map[string]json.RawMessage, key string) (string, error) {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return "", fmt.Errorf("%w: %q is required", ErrSchemaViolation, key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %q must be a string", ErrSchemaViolation, key)
	}
	return s, nil
}

// requiredStrings returns obj[key] as a non-nil string slice. An empty array
// is valid; missing, null, non-array values and non-string items are not.
func requiredStrings(obj map[string]json.RawMessage, key string) ([]string, error) {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return nil, fmt.Errorf("%w: %q is required", ErrSchemaViolation, key)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %q must be an array of strings", ErrSchemaViolation, key)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		var s string
		if isNull(item) || json.Unmarshal(item, &s) != nil {
			return nil, fmt.Errorf("%w: %q[%d] must be a string", ErrSchemaViolation, key, i)
		}
		out = append(out, s)
	}
	return out, nil
}
