package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildResponseSchema returns the JSON-Schema of the extraction response for
// the given field names, as a generic map. Each field may be either a
// {value, confidence, source_text} object or a bare value.
func BuildResponseSchema(fieldNames []string) map[string]any {
	fieldEntry := map[string]any{
		"anyOf": []any{
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"value":       map[string]any{},
					"confidence":  map[string]any{"type": []any{"number", "string", "null"}},
					"source_text": map[string]any{"type": []any{"string", "null"}},
				},
			},
			map[string]any{"type": []any{"string", "number", "boolean", "array", "null"}},
		},
	}
	props := make(map[string]any, len(fieldNames))
	for _, n := range fieldNames {
		props[n] = fieldEntry
	}
	return map[string]any{
		"$schema":  "https://json-schema.org/draft/2020-12/schema",
		"type":     "object",
		"required": []any{"fields"},
		"properties": map[string]any{
			"document_type": map[string]any{"type": "string"},
			"fields": map[string]any{
				"type":                 "object",
				"properties":           props,
				"additionalProperties": true,
			},
		},
	}
}

// ValidateJSONAgainstSchema compiles schemaMap and validates data against it.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
