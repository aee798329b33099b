package vision

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildBusinessCardJSONSchema returns a JSON-Schema (draft 2020-12 subset) as
// a generic map. Only field types are constrained here; presence of required
// fields is checked separately so callers get a specific error message.
func BuildBusinessCardJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":       map[string]any{"type": "string"},
			"title":      map[string]any{"type": "string"},
			"company":    map[string]any{"type": "string"},
			"phone":      map[string]any{"type": "string"},
			"email":      map[string]any{"type": "string"},
			"address":    map[string]any{"type": "string"},
			"website":    map[string]any{"type": "string"},
			"notes":      map[string]any{"type": "string"},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
	}
}

// BuildLicenseJSONSchema is the liquor-license counterpart.
func BuildLicenseJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"licenseNumber": map[string]any{"type": "string"},
			"businessName":  map[string]any{"type": "string"},
			"licenseType":   map[string]any{"type": "string"},
			"issuedDate":    map[string]any{"type": "string"},
			"expiryDate":    map[string]any{"type": "string"},
			"state":         map[string]any{"type": "string"},
			"address":       map[string]any{"type": "string"},
			"restrictions":  map[string]any{"type": "string"},
			"notes":         map[string]any{"type": "string"},
			"confidence":    map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
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
