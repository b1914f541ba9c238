package schema

import (
	"fmt"
	"regexp"

	"github.com/blocksmith-dev/blocksmith/internal/models"
)

// FieldError is a single schema validation finding, addressed by field path
// (nested repeater fields use dotted paths, e.g. "items.title").
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a field schema for malformed definitions and returns one
// message per finding. Types unknown to the registry are not findings: they
// degrade to pass-through fields by design of the extension point.
func Validate(fields models.FieldSchema, registry *models.TypeRegistry) []FieldError {
	return validateScope(fields, registry, "")
}

func validateScope(fields models.FieldSchema, registry *models.TypeRegistry, prefix string) []FieldError {
	var errs []FieldError

	for key, def := range fields {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		if def.Type == "" {
			errs = append(errs, FieldError{path, "MISSING_TYPE", "field has no type"})
			continue
		}
		if !registry.Builtin(def.Type) {
			// Extension or unknown type: nothing further to check locally.
			continue
		}

		if def.DefaultValue != nil && !defaultMatchesType(def) {
			errs = append(errs, FieldError{path, "DEFAULT_TYPE_MISMATCH",
				fmt.Sprintf("default value %v is not valid for type %q", def.DefaultValue, def.Type)})
		}

		switch def.Type {
		case models.FieldTypeSelect, models.FieldTypeMultiSelect:
			if len(def.Options) == 0 {
				errs = append(errs, FieldError{path, "MISSING_OPTIONS",
					fmt.Sprintf("%s field declares no options", def.Type)})
			}
		case models.FieldTypeRepeater:
			if len(def.ItemSchema) == 0 {
				errs = append(errs, FieldError{path, "MISSING_ITEM_SCHEMA", "repeater declares no item schema"})
			}
			if def.MinItems < 0 {
				errs = append(errs, FieldError{path, "INVALID_BOUNDS", "minItems must not be negative"})
			}
			if def.MaxItems > 0 && def.MaxItems < def.MinItems {
				errs = append(errs, FieldError{path, "INVALID_BOUNDS", "maxItems is smaller than minItems"})
			}
			errs = append(errs, validateScope(def.ItemSchema, registry, path)...)
		}

		if def.Validation != nil && def.Validation.Pattern != "" {
			if _, err := regexp.Compile(def.Validation.Pattern); err != nil {
				errs = append(errs, FieldError{path, "INVALID_PATTERN",
					fmt.Sprintf("validation pattern does not compile: %v", err)})
			}
		}

		if def.ShowWhen != nil {
			switch def.ShowWhen.Operator {
			case "equals", "notEquals", "isEmpty", "notEmpty":
			default:
				errs = append(errs, FieldError{path, "INVALID_CONDITION",
					fmt.Sprintf("unknown showWhen operator %q", def.ShowWhen.Operator)})
			}
		}
	}

	return errs
}

func defaultMatchesType(def models.FieldDefinition) bool {
	switch def.Type {
	case models.FieldTypeText, models.FieldTypeTextarea, models.FieldTypeRichText,
		models.FieldTypeDate, models.FieldTypeImage, models.FieldTypeLink,
		models.FieldTypeColor, models.FieldTypeSelect:
		_, ok := def.DefaultValue.(string)
		return ok
	case models.FieldTypeNumber, models.FieldTypeSlider:
		return isNumeric(def.DefaultValue)
	case models.FieldTypeBoolean:
		_, ok := def.DefaultValue.(bool)
		return ok
	case models.FieldTypeMultiSelect, models.FieldTypeRepeater:
		return isSequence(def.DefaultValue)
	default:
		return true
	}
}

func isNumeric(v interface{}) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}

func isSequence(v interface{}) bool {
	switch v.(type) {
	case []interface{}, []string, []map[string]interface{}:
		return true
	default:
		return false
	}
}
