package tool

import (
	"encoding/json"
	"fmt"
	"math"
)

// ValidateInput checks the JSON input against the tool's declared parameter
// schema: required fields, types, numeric bounds, enum membership. It is a
// lightweight structural check, not a full JSON Schema engine; it covers the
// subset the tool declarations actually use.
func ValidateInput(schema map[string]interface{}, input json.RawMessage) error {
	var inputMap map[string]interface{}
	if err := json.Unmarshal(input, &inputMap); err != nil {
		return fmt.Errorf("invalid JSON input: %w", err)
	}

	return validateObject("", schema, inputMap)
}

func validateObject(path string, schema map[string]interface{}, input map[string]interface{}) error {
	if required, ok := schema["required"].([]interface{}); ok {
		for _, field := range required {
			fieldName, ok := field.(string)
			if !ok {
				continue // malformed schema
			}
			if _, exists := input[fieldName]; !exists {
				return fmt.Errorf("missing required field: %s", joinPath(path, fieldName))
			}
		}
	} else if required, ok := schema["required"].([]string); ok {
		for _, fieldName := range required {
			if _, exists := input[fieldName]; !exists {
				return fmt.Errorf("missing required field: %s", joinPath(path, fieldName))
			}
		}
	}

	properties, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return nil
	}

	for key, value := range input {
		propSchema, defined := properties[key]
		if !defined {
			// Unknown fields pass through; the model sometimes invents
			// harmless extras and rejecting them helps nobody.
			continue
		}

		propSchemaMap, ok := propSchema.(map[string]interface{})
		if !ok {
			continue
		}

		if err := validateValue(joinPath(path, key), propSchemaMap, value); err != nil {
			return err
		}
	}

	return nil
}

func validateValue(fieldName string, schema map[string]interface{}, value interface{}) error {
	expectedType, _ := schema["type"].(string)

	switch expectedType {
	case "string":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("field '%s' expected string, got %T", fieldName, value)
		}
		return validateEnum(fieldName, schema, s)
	case "number":
		n, ok := value.(float64)
		if !ok {
			return fmt.Errorf("field '%s' expected number, got %T", fieldName, value)
		}
		return validateBounds(fieldName, schema, n)
	case "integer":
		n, ok := value.(float64)
		if !ok || n != math.Trunc(n) {
			return fmt.Errorf("field '%s' expected integer, got %v", fieldName, value)
		}
		return validateBounds(fieldName, schema, n)
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field '%s' expected boolean, got %T", fieldName, value)
		}
	case "array":
		arr, ok := value.([]interface{})
		if !ok {
			return fmt.Errorf("field '%s' expected array, got %T", fieldName, value)
		}
		if itemsSchema, ok := schema["items"].(map[string]interface{}); ok {
			for i, item := range arr {
				if err := validateValue(fmt.Sprintf("%s[%d]", fieldName, i), itemsSchema, item); err != nil {
					return err
				}
			}
		}
	case "object":
		obj, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("field '%s' expected object, got %T", fieldName, value)
		}
		return validateObject(fieldName, schema, obj)
	}

	return nil
}

func validateBounds(fieldName string, schema map[string]interface{}, value float64) error {
	if minimum, ok := numberConstraint(schema, "minimum"); ok && value < minimum {
		return fmt.Errorf("field '%s' must be >= %v, got %v", fieldName, minimum, value)
	}
	if maximum, ok := numberConstraint(schema, "maximum"); ok && value > maximum {
		return fmt.Errorf("field '%s' must be <= %v, got %v", fieldName, maximum, value)
	}
	return nil
}

func validateEnum(fieldName string, schema map[string]interface{}, value string) error {
	rawEnum, ok := schema["enum"]
	if !ok {
		return nil
	}

	var allowed []string
	switch e := rawEnum.(type) {
	case []interface{}:
		for _, v := range e {
			if s, ok := v.(string); ok {
				allowed = append(allowed, s)
			}
		}
	case []string:
		allowed = e
	default:
		return nil
	}

	for _, s := range allowed {
		if value == s {
			return nil
		}
	}
	return fmt.Errorf("field '%s' must be one of %v, got %q", fieldName, allowed, value)
}

func numberConstraint(schema map[string]interface{}, key string) (float64, bool) {
	switch v := schema[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}
