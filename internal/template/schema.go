package template

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ebmtools/invoice-validator/internal/common"
)

// buildTemplateSchema returns the JSON-Schema a template document must satisfy,
// as a generic map. Structural problems in a template file are deployment
// defects and fail the load outright.
func buildTemplateSchema() map[string]any {
	str := map[string]any{"type": "string"}
	strList := map[string]any{"type": "array", "items": map[string]any{"type": "string", "minLength": 1}}

	fieldProps := map[string]any{
		"parser":       map[string]any{"enum": []any{"regex", "static", "lines"}},
		"pattern":      str,
		"patterns":     map[string]any{"type": "array", "items": str, "minItems": 1},
		"static_value": str,
		"type":         map[string]any{"enum": []any{"string", "amount", "number", "date", "raw"}},
		"group":        map[string]any{"enum": []any{"first", "last", "sum", "concat"}},
		"required":     map[string]any{"type": "boolean"},
		"compare":      map[string]any{"type": "boolean"},
	}

	replacement := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"pattern":     str,
			"replacement": str,
		},
		"required": []any{"pattern", "replacement"},
	}

	options := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"collapse_whitespace": map[string]any{"type": "boolean"},
			"strip_accents":       map[string]any{"type": "boolean"},
			"lowercase":           map[string]any{"type": "boolean"},
			"decimal_separator":   str,
			"thousands_separator": str,
			"date_formats":        strList,
			"replacements":        map[string]any{"type": "array", "items": replacement},
		},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"template_name":    map[string]any{"type": "string", "minLength": 1},
			"issuer":           map[string]any{"type": "string", "minLength": 1},
			"keywords":         map[string]any{"type": "array", "items": map[string]any{"type": "string", "minLength": 1}, "minItems": 1},
			"exclude_keywords": strList,
			"options":          options,
			"required_fields":  strList,
			"fields": map[string]any{
				"type":          "object",
				"minProperties": 1,
				"additionalProperties": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties":           fieldProps,
				},
			},
		},
		"required": []any{"template_name", "issuer", "keywords", "fields"},
	}
}

// validateAgainstSchema validates "data" (a JSON document) against "schemaMap".
func validateAgainstSchema(schemaMap map[string]any, data []byte) error {
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
		return common.NewAppError("TEMPLATE_SCHEMA", err.Error(), common.ErrValidation)
	}
	return nil
}
