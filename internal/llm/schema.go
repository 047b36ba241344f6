package llm

import "encoding/json"

// Schema is the subset of JSON Schema the flows need: objects of strings and
// string arrays. It marshals to a plain JSON Schema document.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// String returns the schema as compact JSON.
func (s *Schema) String() string {
	data, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// withSchemaHint appends the expected output shape to a prompt for providers
// that cannot enforce a schema natively.
func withSchemaHint(req Request) string {
	if req.Schema == nil {
		return req.Prompt
	}
	return req.Prompt + "\n\nRespond with ONLY a JSON object matching this JSON Schema, no other text:\n" + req.Schema.String()
}
