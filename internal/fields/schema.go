package fields

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/enviroscan/logsheet/constants"
)

// BuildCatalogSchema returns a JSON-Schema (draft 2020-12 subset) as a generic
// map. The embedded field catalog is validated against it at load time so a
// bad edit fails fast instead of corrupting downstream matching.
func BuildCatalogSchema() map[string]any {
	fieldProps := map[string]any{
		"key": map[string]any{"type": "string", "minLength": 1, "pattern": `^[a-z][a-z0-9_]*$`},
		"label_synonyms": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items":    map[string]any{"type": "string", "minLength": 1},
		},
		"unit": map[string]any{"type": "string"},
		"data_type": map[string]any{
			"type": "string",
			"enum": constants.DataTypesAsStrings(),
		},
		"typical_min":      map[string]any{"type": "number"},
		"typical_max":      map[string]any{"type": "number"},
		"max_hourly_delta": map[string]any{"type": "number", "minimum": 0.0},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"fields"},
		"properties": map[string]any{
			"fields": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"key", "label_synonyms", "unit", "data_type"},
					"properties":           fieldProps,
				},
			},
		},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
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
